package specialists

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/polarisbot/polaris/internal/polaris/llm"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
)

// DefaultAgentName is the DataAgents row whose Instructions column supplies
// the general-chat persona.
const DefaultAgentName = "Default"

// defaultPersona is the hardcoded failsafe persona used when the DataAgents
// table is unreadable or carries no Default row.
const defaultPersona = "You are a helpful assistant."

// Chat is the general conversation specialist and the router's fallback
// destination. It makes one prediction call with the configured persona as
// system prompt and relays the model's reply verbatim.
type Chat struct {
	src    tabular.Source
	client llm.Client
}

// NewChat creates the general-chat specialist.
func NewChat(src tabular.Source, client llm.Client) *Chat {
	return &Chat{src: src, client: client}
}

// Handle answers req.Text conversationally.
func (c *Chat) Handle(ctx context.Context, req Request) Response {
	persona := c.loadPersona(ctx)

	answer, err := c.client.Predict(ctx, "chat_persona", persona, req.Text)
	if err != nil {
		return Response{OK: false, Message: fmt.Sprintf("⚠️ AI Error: %v", err)}
	}
	return Response{OK: true, Message: answer}
}

// loadPersona resolves the Default agent's instructions, degrading to the
// generic persona on any failure. Unlike settings/manifest loading, this is
// an explicitly permitted silent default: chat must keep working with an
// empty DataAgents table.
func (c *Chat) loadPersona(ctx context.Context) string {
	rows, err := c.src.ReadTable(ctx, tabular.TableDataAgents)
	if err != nil {
		slog.Warn("chat: reading DataAgents failed, using default persona", "err", err)
		return defaultPersona
	}

	for _, row := range rows {
		name, ok := row.Field("agentName", "AgentName")
		if !ok || !strings.EqualFold(name, DefaultAgentName) {
			continue
		}
		if instructions, ok := row.Field("Instructions", "instructions"); ok {
			return instructions
		}
	}
	return defaultPersona
}

package specialists

import (
	"context"
	"fmt"
	"strings"

	"github.com/polarisbot/polaris/internal/polaris/manifest"
)

// Help renders the merged handler manifest as a capability list.
type Help struct {
	manifest *manifest.Loader
}

// NewHelp creates the help specialist.
func NewHelp(loader *manifest.Loader) *Help {
	return &Help{manifest: loader}
}

// Handle lists every routable handler with its description.
func (h *Help) Handle(ctx context.Context, req Request) Response {
	m, err := h.manifest.Load(ctx)
	if err != nil {
		return Response{OK: false, Message: "⚠️ Cannot read the handler list right now."}
	}

	var b strings.Builder
	b.WriteString("Here's what I can do:\n")
	for _, d := range m {
		desc := d.Description
		if desc == "" {
			desc = "No description."
		}
		fmt.Fprintf(&b, "• **%s**: %s\n", d.Key, desc)
	}
	return Response{OK: true, Message: strings.TrimRight(b.String(), "\n")}
}

// Package app assembles and runs the Polaris assistant.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polarisbot/polaris/internal/polaris/llm"
	"github.com/polarisbot/polaris/internal/polaris/manifest"
	"github.com/polarisbot/polaris/internal/polaris/matrix"
	"github.com/polarisbot/polaris/internal/polaris/pending"
	"github.com/polarisbot/polaris/internal/polaris/pipeline"
	"github.com/polarisbot/polaris/internal/polaris/policy"
	"github.com/polarisbot/polaris/internal/polaris/registry"
	"github.com/polarisbot/polaris/internal/polaris/router"
	"github.com/polarisbot/polaris/internal/polaris/settings"
	"github.com/polarisbot/polaris/internal/polaris/specialists"
	"github.com/polarisbot/polaris/internal/polaris/store"
	"github.com/polarisbot/polaris/internal/polaris/tabular"
	"github.com/polarisbot/polaris/internal/polaris/web"
)

// Config holds application configuration.
type Config struct {
	DatabasePath string
	Matrix       matrix.Config

	// BaseURL is the externally reachable root of the HTTP server, used to
	// build confirmation links (e.g. "https://polaris.example.com").
	BaseURL string
	// HTTPAddr is the TCP address the HTTP server listens on (e.g. ":8080").
	// When empty the server is disabled and email drafts cannot be
	// confirmed.
	HTTPAddr string

	// BreakGlassAdmins lists user IDs that keep admin access when the policy
	// table itself is unreadable. Empty by default; every use is audited.
	BreakGlassAdmins []string

	// RateLimit is the maximum messages per sender per minute. Defaults to
	// llm.DefaultRateLimit when zero; negative disables limiting.
	RateLimit int

	// CacheTTL overrides how long settings and handler manifests stay
	// cached. Defaults to cache.DefaultTTL (10 minutes) when zero.
	CacheTTL time.Duration

	// SeedWorkbookPath optionally points at a YAML workbook used to populate
	// empty configuration tables on startup.
	SeedWorkbookPath string

	// LLM is an optional pre-constructed prediction client. When nil an
	// OpenAI-compatible client is built from the settings table.
	LLM llm.Client
	// LLMBaseURL overrides the prediction API endpoint (e.g. an Ollama or
	// Azure deployment). Ignored when LLM is set.
	LLMBaseURL string

	// Calendar and Mail are the provider ports. When nil, the corresponding
	// specialist reports the capability as unavailable instead of failing at
	// startup.
	Calendar specialists.CalendarPort
	Mail     specialists.MailPort
}

// App is the assembled Polaris application.
type App struct {
	config       *Config
	store        *store.Store
	matrix       *matrix.Client
	orchestrator *pipeline.Orchestrator
	webServer    *web.Server
}

// New wires all subsystems together.
func New(config *Config) (*App, error) {
	slog.Info("opening database", "path", config.DatabasePath)
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	src := tabular.NewSQLiteSource(st)

	// Seed configuration tables from a YAML workbook on first run.
	if config.SeedWorkbookPath != "" {
		wb, err := tabular.LoadWorkbook(config.SeedWorkbookPath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to load seed workbook: %w", err)
		}
		if err := tabular.Seed(context.Background(), src, wb); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to seed tables: %w", err)
		}
		slog.Info("seed workbook applied", "path", config.SeedWorkbookPath)
	}

	settingsLoader := settings.NewLoader(src, config.CacheTTL, time.Now)
	manifestLoader := manifest.NewLoader(src, config.CacheTTL, time.Now)

	client := config.LLM
	if client == nil {
		client = llm.New(llm.Config{BaseURL: config.LLMBaseURL}, settingsLoader)
		slog.Info("prediction client ready", "endpoint_override", config.LLMBaseURL != "")
	} else {
		slog.Info("prediction client: using pre-configured client")
	}

	intentRouter := router.New(manifestLoader, client, st)
	gate := policy.NewGate(src, st, config.BreakGlassAdmins)

	calendarPort := config.Calendar
	if calendarPort == nil {
		calendarPort = specialists.UnboundCalendar{}
		slog.Warn("no calendar provider configured; calendar requests will be refused")
	}
	mailPort := config.Mail
	if mailPort == nil {
		mailPort = specialists.UnboundMail{}
		slog.Warn("no mail provider configured; mail requests will be refused")
	}

	pendingStore := pending.NewStore(st)

	reg := registry.New()
	reg.Register("mail", specialists.NewMail(client, manifestLoader, mailPort, pendingStore, config.BaseURL))
	reg.Register("calendar", specialists.NewCalendar(client, manifestLoader, calendarPort, settingsLoader))
	reg.Register("sheets", specialists.NewLists(src))
	reg.Register("general_chat", specialists.NewChat(src, client))
	reg.Register("help", specialists.NewHelp(manifestLoader))

	var limiter *llm.RateLimiter
	if config.RateLimit >= 0 {
		limiter = llm.NewRateLimiter(config.RateLimit, time.Minute)
	}

	orchestrator := pipeline.New(intentRouter, gate, reg, limiter, st)

	// Matrix front-end; the store is injected so the sync token survives
	// restarts.
	matrixCfg := config.Matrix
	matrixCfg.Store = st
	slog.Info("connecting to Matrix", "homeserver", matrixCfg.Homeserver)
	matrixClient, err := matrix.New(&matrixCfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize Matrix client: %w", err)
	}

	// Confirmation HTTP server. Without it drafts can be created but never
	// sent, so warn loudly.
	var webServer *web.Server
	if config.HTTPAddr != "" {
		confirmer := specialists.NewMailConfirmer(pendingStore, mailPort, st)
		webServer = web.NewServer(config.HTTPAddr, confirmer)
		slog.Info("confirmation server configured", "addr", config.HTTPAddr, "baseURL", config.BaseURL)
	} else {
		slog.Warn("HTTP server disabled; email drafts cannot be confirmed")
	}

	return &App{
		config:       config,
		store:        st,
		matrix:       matrixClient,
		orchestrator: orchestrator,
		webServer:    webServer,
	}, nil
}

// Run starts the application and blocks until an interrupt signal.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.webServer != nil {
		if err := a.webServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}

	slog.Info("starting Matrix sync")
	if err := a.matrix.Start(ctx, a.orchestrator.HandleMessage); err != nil {
		return fmt.Errorf("failed to start Matrix client: %w", err)
	}

	slog.Info("Polaris is running; press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	return nil
}

// Stop stops the application.
func (a *App) Stop() {
	slog.Info("stopping Matrix client")
	a.matrix.Stop()

	if a.webServer != nil {
		slog.Info("stopping HTTP server")
		a.webServer.Stop()
	}

	slog.Info("closing database")
	a.store.Close()
}

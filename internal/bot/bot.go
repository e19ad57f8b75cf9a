// Package bot wires the HabitPipe modules together: habit store, dialogue
// engine, messaging transport, and the HTTP server for health checks and the
// Twilio inbound webhook.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/HabitPipe/internal/flow"
	"github.com/BTreeMap/HabitPipe/internal/genai"
	"github.com/BTreeMap/HabitPipe/internal/messaging"
	"github.com/BTreeMap/HabitPipe/internal/store"
	"github.com/BTreeMap/HabitPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/HabitPipe/internal/whatsapp"
)

// Transport names accepted by WithTransport.
const (
	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
)

const (
	// DefaultAddr is the default HTTP listen address
	DefaultAddr = ":8080"
	// shutdownTimeout bounds the HTTP server drain during shutdown
	shutdownTimeout = 5 * time.Second
)

// Opts holds bot-level configuration.
type Opts struct {
	Transport string        // messaging transport, whatsapp or twilio
	Addr      string        // HTTP listen address
	OpenAIKey string        // enables the completion motivator when set
	StateTTL  time.Duration // dialogue state expiry, 0 keeps states indefinitely
}

// Option defines a configuration option for the bot.
type Option func(*Opts)

// WithTransport selects the messaging transport.
func WithTransport(name string) Option {
	return func(o *Opts) { o.Transport = name }
}

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithOpenAIKey enables the GenAI motivator with the given API key.
func WithOpenAIKey(key string) Option {
	return func(o *Opts) { o.OpenAIKey = key }
}

// WithStateTTL expires abandoned dialogue states after the given duration.
func WithStateTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.StateTTL = ttl }
}

// Run assembles the bot and blocks until SIGINT or SIGTERM.
func Run(storeOpts []store.Option, waOpts []whatsapp.Option, twilioOpts []twiliowhatsapp.Option, opts ...Option) error {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportWhatsApp
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	slog.Debug("bot.Run configuration", "transport", cfg.Transport, "addr", cfg.Addr, "openai_key_set", cfg.OpenAIKey != "", "state_ttl", cfg.StateTTL)

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize habit store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("bot failed to close habit store", "error", err)
		}
	}()

	var tableOpts []flow.TableOption
	if cfg.StateTTL > 0 {
		tableOpts = append(tableOpts, flow.WithStateTTL(cfg.StateTTL))
	}
	states := flow.NewMemoryStateTable(tableOpts...)

	var engine *flow.HabitFlow
	if cfg.OpenAIKey != "" {
		engine = flow.NewHabitFlowWithMotivator(st, states, genai.NewMotivatorWithKey(cfg.OpenAIKey))
		slog.Info("bot motivator enabled")
	} else {
		engine = flow.NewHabitFlow(st, states)
	}

	svc, twilioSvc, err := buildTransport(cfg.Transport, waOpts, twilioOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize %s transport: %w", cfg.Transport, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher := messaging.NewDispatcher(svc, engine)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	if twilioSvc != nil {
		mux.HandleFunc("/twilio/webhook", twilioSvc.WebhookHandler)
		slog.Info("bot Twilio webhook registered", "path", "/twilio/webhook")
	}

	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("bot HTTP server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("bot received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("bot HTTP server failed", "error", err)
		cancel()
		if stopErr := dispatcher.Stop(); stopErr != nil {
			slog.Error("bot failed to stop dispatcher", "error", stopErr)
		}
		return fmt.Errorf("http server failed: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("bot HTTP server shutdown error", "error", err)
	}

	if err := dispatcher.Stop(); err != nil {
		slog.Error("bot failed to stop dispatcher", "error", err)
	}

	slog.Info("bot shut down cleanly")
	return nil
}

// buildStore selects a store backend from the configured DSN. Without a DSN
// the bot runs on the in-memory store.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var so store.Opts
	for _, opt := range storeOpts {
		opt(&so)
	}
	if so.DSN == "" {
		slog.Info("bot using in-memory habit store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(so.DSN) == "postgres" {
		slog.Info("bot using PostgreSQL habit store")
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Info("bot using SQLite habit store", "path", so.DSN)
	return store.NewSQLiteStore(storeOpts...)
}

// buildTransport constructs the selected messaging service. The Twilio
// service is returned separately so its webhook handler can be mounted.
func buildTransport(transport string, waOpts []whatsapp.Option, twilioOpts []twiliowhatsapp.Option) (messaging.Service, *messaging.TwilioService, error) {
	switch transport {
	case TransportWhatsApp:
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), nil, nil
	case TransportTwilio:
		client, err := twiliowhatsapp.NewClient(twilioOpts...)
		if err != nil {
			return nil, nil, err
		}
		svc := messaging.NewTwilioService(client)
		return svc, svc, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", transport)
	}
}

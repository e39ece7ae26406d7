package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkarag/venturo/internal/agent"
	"github.com/mkarag/venturo/internal/config"
	"github.com/mkarag/venturo/internal/janitor"
	"github.com/mkarag/venturo/internal/llm"
	"github.com/mkarag/venturo/internal/natsbus"
	"github.com/mkarag/venturo/internal/notify"
	"github.com/mkarag/venturo/internal/store"
	"github.com/mkarag/venturo/internal/web"
	"github.com/mkarag/venturo/internal/workflow"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("venturo %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			slog.Error("export failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: venturo <command>\n\nCommands:\n  serve      Start the Venturo analysis service\n  export     Export conversations to a tar.zst archive\n  version    Print version\n")
}

func newStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting venturo", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Conversation store
	db, err := newStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "backend", cfg.Store.Backend)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "port", bus.Port())

	busClient, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init nats client: %w", err)
	}
	defer busClient.Close()

	// Agent pipeline
	capability := llm.NewClient(cfg.LLM)
	invoker := agent.NewInvoker(capability, cfg.Workflow.Workers, cfg.Workflow.InvocationTimeout.Duration())
	orch := workflow.NewOrchestrator(db, invoker, natsbus.NewEmitter(busClient))

	// Retention janitor
	jan, err := janitor.New(db, cfg.Retention)
	if err != nil {
		return fmt.Errorf("init janitor: %w", err)
	}
	go jan.Start(ctx)

	// Telegram notifier
	if cfg.Telegram.Token != "" {
		notifier, err := notify.New(cfg.Telegram, bus)
		if err != nil {
			return fmt.Errorf("init telegram notifier: %w", err)
		}
		go func() {
			if err := notifier.Start(ctx); err != nil {
				slog.Error("telegram notifier error", "error", err)
			}
		}()
	} else {
		slog.Info("telegram token not set, notifier disabled")
	}

	// Web server
	srv := web.NewServer(db, bus, orch, cfg.Web, version)
	go func() {
		if err := srv.Start(ctx); err != nil {
			slog.Error("web server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	// Let in-flight analyses wind down before the store closes.
	orch.Wait()
	return nil
}

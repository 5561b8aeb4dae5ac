package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docbridge/internal/api"
	"github.com/dgallion1/docbridge/internal/config"
	"github.com/dgallion1/docbridge/internal/dispatch"
	"github.com/dgallion1/docbridge/internal/gate"
	"github.com/dgallion1/docbridge/internal/host"
	"github.com/dgallion1/docbridge/internal/tools"
	"github.com/dgallion1/docbridge/internal/workspace"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.APIKey == "" {
		log.Warn("DOCBRIDGE_API_KEY not set, API is unauthenticated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The host loop owns every document; all tool work runs on it.
	loop := host.NewLoop(cfg.HostQueueSize, log.With("component", "host"))
	loop.Start(ctx)

	disp := dispatch.New(loop, log.With("component", "dispatch"), dispatch.Options{
		Timeout:     cfg.OperationTimeout,
		StatsWindow: cfg.StatsWindow,
		JournalTTL:  cfg.JournalTTL,
	})
	disp.StartJanitor(ctx, time.Minute)

	g := gate.New(gate.Options{
		MaxWaiters:  cfg.GateMaxWaiters,
		WaitTimeout: cfg.GateWaitTimeout,
	})

	ws := workspace.New(workspace.Options{
		DocumentDir:  cfg.DocumentDir,
		LinesPerPage: cfg.LinesPerPage,
		PreviewChars: cfg.PreviewChars,
		AutoCommit:   cfg.AutoCommit,
	}, log.With("component", "workspace"))

	inv := tools.NewInvoker(tools.NewDefaultRegistry(), g, disp, ws, log.With("component", "tools"))
	srv := api.NewServer(inv, loop, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.OperationTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		loop.Stop()
		cancel()
	}()

	log.Info("starting docbridge",
		"port", cfg.Port,
		"document_dir", cfg.DocumentDir,
		"operation_timeout", cfg.OperationTimeout.String(),
		"auto_commit", cfg.AutoCommit,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

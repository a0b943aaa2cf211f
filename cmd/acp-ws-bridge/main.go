// Command acp-ws-bridge exposes a stdio ACP agent over websockets. Every
// websocket connection gets its own agent process; each text message is
// one JSON-RPC message.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/auth"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/config"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/observability"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/recorder"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address, overrides bridge.addr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Bridge.Addr = *addr
	}
	// remaining arguments replace the configured agent command
	if args := flag.Args(); len(args) > 0 {
		cfg.Agent.Command, cfg.Agent.Args = args[0], args[1:]
	}
	if cfg.Agent.Command == "" {
		return errors.New("agent.command is not set")
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	logger = logger.WithFields(logging.String("service", "acp-ws-bridge"))
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.NewObserver(cfg.ObservabilityConfig("acp-ws-bridge", version))
	if err != nil {
		return fmt.Errorf("failed to create observer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	if m, ok := obs.Metrics().(*observability.PrometheusMetricsProvider); ok {
		if err := m.Start(ctx); err != nil {
			return err
		}
		logger.Info("Serving metrics", logging.String("addr", m.Addr()))
	}

	b := newBridge(cfg.Agent.ProcessConfig(nil), cfg.Transport.MaxLineBytes, logger)
	b.track = obs.ConnectionStarted

	if cfg.Recorder.Enabled {
		rec, err := recorder.Open(ctx, cfg.Recorder.Path, logger)
		if err != nil {
			return err
		}
		defer rec.Close()
		b.observe = func(ctx context.Context) (transport.FrameObserver, func()) {
			session, err := rec.StartSession(ctx, "bridge")
			if err != nil {
				logger.WithError(err).Warn("Recording disabled for connection")
				return nil, func() {}
			}
			return session.Observer(), func() { _ = session.Close(context.Background()) }
		}
	}

	guard := auth.MiddlewareConfig{Logger: logger}
	if len(cfg.Bridge.APIKeys) > 0 {
		guard.Provider = auth.NewAPIKeyProvider(&auth.APIKeyConfig{Keys: cfg.Bridge.APIKeys})
	} else {
		logger.Warn("No bridge.api_keys configured, websockets are unauthenticated")
	}
	if cfg.Bridge.ConnectionsPerMinute > 0 {
		guard.Limiter = auth.NewRateLimiter(auth.RateLimitConfig{
			PerMinute: cfg.Bridge.ConnectionsPerMinute,
			Burst:     cfg.Bridge.Burst,
		})
		go pruneLimiter(ctx, guard.Limiter)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Bridge.Path, auth.HTTPMiddleware(guard)(b))
	srv := &http.Server{
		Addr:              cfg.Bridge.Addr,
		Handler:           logging.HTTPMiddleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Bridge listening",
			logging.String("addr", cfg.Bridge.Addr),
			logging.String("path", cfg.Bridge.Path),
			logging.String("agent", cfg.Agent.Command),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Agent.StopTimeout()+time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// pruneLimiter drops the buckets of clients that went quiet
func pruneLimiter(ctx context.Context, limiter *auth.RateLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune(10 * time.Minute)
		}
	}
}

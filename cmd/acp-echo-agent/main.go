// Command acp-echo-agent is a minimal ACP agent speaking over stdio. Every
// prompt is answered with one "Echo: <text>" message chunk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/agent"
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
	delay := flag.Duration("delay", 0, "wait before answering a prompt, so it can be cancelled")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	logger = logger.WithFields(logging.String("service", "acp-echo-agent"))
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append([]transport.Option{
		transport.WithLogger(logger),
		transport.WithMiddleware(transport.LoggingMiddleware(logger)),
	}, cfg.TransportOptions()...)

	obs, err := observability.NewObserver(cfg.ObservabilityConfig("acp-echo-agent", version))
	if err != nil {
		return fmt.Errorf("failed to create observer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	opts = append(opts, obs.Options()...)
	if m, ok := obs.Metrics().(*observability.PrometheusMetricsProvider); ok {
		if err := m.Start(ctx); err != nil {
			return err
		}
		logger.Info("Serving metrics", logging.String("addr", m.Addr()))
	}

	if cfg.Recorder.Enabled {
		rec, err := recorder.Open(ctx, cfg.Recorder.Path, logger)
		if err != nil {
			return err
		}
		defer rec.Close()
		session, err := rec.StartSession(ctx, "agent")
		if err != nil {
			return err
		}
		defer session.Close(context.Background())
		opts = append(opts, transport.WithFrameObserver(session.Observer()))
	}

	conn := agent.NewAgentSideConnection(newEchoAgent(logger, *delay), os.Stdout, os.Stdin, opts...)
	done := obs.ConnectionStarted(ctx)
	defer done()

	logger.Info("Agent ready", logging.String("version", version))
	if err := conn.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	conn.Connection().Wait()
	logger.Info("Agent stopped")
	return nil
}

// Command acp-client launches an ACP agent as a subprocess, opens a session
// in a workspace and sends one prompt. Agent messages are printed to stdout
// while file access is confined to the workspace. Interrupting the command
// cancels the running prompt turn.
//
// Usage:
//
//	acp-client -config acp.yaml "summarize README.md"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/client"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/config"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/observability"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/recorder"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

const version = "0.1.0"

// cancelGrace bounds the wait for the agent to answer a cancelled prompt
const cancelGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	workspace := flag.String("workspace", "", "workspace directory, overrides client.workspace")
	permission := flag.String("permission", "", "permission policy: allow, reject or cancel")
	flag.Parse()

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		return errors.New("usage: acp-client [flags] <prompt>")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *workspace != "" {
		cfg.Client.Workspace = *workspace
	}
	if *permission != "" {
		cfg.Client.Permission = *permission
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Agent.Command == "" {
		return errors.New("agent.command is not set")
	}
	cwd := cfg.Client.Workspace
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return err
		}
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	logger = logger.WithFields(logging.String("service", "acp-client"))
	logging.SetGlobalLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append([]transport.Option{
		transport.WithLogger(logger),
		transport.WithMiddleware(transport.LoggingMiddleware(logger)),
	}, cfg.TransportOptions()...)

	obs, err := observability.NewObserver(cfg.ObservabilityConfig("acp-client", version))
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
		session, err := rec.StartSession(ctx, "client")
		if err != nil {
			return err
		}
		defer session.Close(context.Background())
		opts = append(opts, transport.WithFrameObserver(session.Observer()))
	}

	logger.Info("Spawning agent",
		logging.String("command", cfg.Agent.Command),
		logging.String("args", strings.Join(cfg.Agent.Args, " ")),
	)
	proc, err := transport.StartProcess(context.Background(),
		cfg.Agent.ProcessConfig(logger.WithFields(logging.Component("agent"))))
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Agent.StopTimeout()+time.Second)
		defer cancel()
		if err := proc.Stop(stopCtx); err != nil {
			logger.WithError(err).Warn("Agent stop failed")
		}
	}()

	h := newHost(cfg.Client.Workspace, cfg.Client.Permission, os.Stdout, logger)
	conn := client.NewClientSideConnection(h, proc.Stdin(), proc.Stdout(), opts...)
	go func() {
		if err := conn.Start(context.Background()); err != nil {
			logger.WithError(err).Warn("Connection ended")
		}
	}()
	defer conn.Stop(context.Background())
	done := obs.ConnectionStarted(ctx)
	defer done()

	return promptOnce(ctx, conn, cwd, text, logger)
}

// promptOnce runs initialize, session/new and one prompt turn. When ctx is
// cancelled mid-turn a session/cancel is sent and the turn's own stop
// reason is awaited.
func promptOnce(ctx context.Context, conn *client.ClientSideConnection, cwd, text string, logger logging.Logger) error {
	info, err := conn.Initialize(ctx, &protocol.InitializeRequest{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientCapabilities: &protocol.ClientCapabilities{
			FS: &protocol.FileSystemCapability{ReadTextFile: true, WriteTextFile: true},
		},
	})
	if err != nil {
		return err
	}
	logger.Info("Initialized", logging.Int("protocol_version", info.ProtocolVersion))

	created, err := conn.NewSession(ctx, &protocol.NewSessionRequest{Cwd: cwd})
	if err != nil {
		return err
	}
	logger.Info("Session created", logging.SessionID(created.SessionID), logging.String("cwd", cwd))

	type result struct {
		resp *protocol.PromptResponse
		err  error
	}
	turnCtx, cancelTurn := context.WithCancel(context.Background())
	defer cancelTurn()
	results := make(chan result, 1)
	go func() {
		resp, err := conn.Prompt(turnCtx, &protocol.PromptRequest{
			SessionID: created.SessionID,
			Prompt:    []protocol.ContentBlock{protocol.TextBlock(text)},
		})
		results <- result{resp, err}
	}()

	var r result
	select {
	case r = <-results:
	case <-ctx.Done():
		logger.Info("Cancelling prompt", logging.SessionID(created.SessionID))
		if err := conn.Cancel(context.Background(), &protocol.CancelNotification{SessionID: created.SessionID}); err != nil {
			return err
		}
		select {
		case r = <-results:
		case <-time.After(cancelGrace):
			return errors.New("agent did not answer the cancelled prompt")
		}
	}
	if r.err != nil {
		return r.err
	}
	logger.Info("Prompt finished", logging.String("stop_reason", string(r.resp.StopReason)))
	return nil
}

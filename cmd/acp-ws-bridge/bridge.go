package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

// bridge serves each websocket by a fresh agent process. Messages are
// shuttled as lines without being decoded.
type bridge struct {
	process      transport.ProcessConfig
	maxLineBytes int
	logger       logging.Logger
	upgrader     websocket.Upgrader

	// observe returns the frame observer for a new websocket, or nil
	observe func(ctx context.Context) (transport.FrameObserver, func())
	// track is called when a websocket opens and returns its close callback
	track func(ctx context.Context) func()
}

func newBridge(process transport.ProcessConfig, maxLineBytes int, logger logging.Logger) *bridge {
	return &bridge{
		process:      process,
		maxLineBytes: maxLineBytes,
		logger:       logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (b *bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.WithError(err).Warn("Upgrade failed")
		return
	}
	stream := transport.NewWebSocketStream(ws)
	defer stream.Close()

	logger := b.logger.WithFields(logging.String("remote", r.RemoteAddr))
	logger.Info("Websocket opened")
	defer logger.Info("Websocket closed")

	ctx := context.Background()
	if b.track != nil {
		defer b.track(ctx)()
	}
	var observer transport.FrameObserver
	if b.observe != nil {
		var done func()
		observer, done = b.observe(ctx)
		defer done()
	}

	cfg := b.process
	cfg.Logger = logger.WithFields(logging.Component("agent"))
	proc, err := transport.StartProcess(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to start agent")
		return
	}

	if err := b.shuttle(ctx, stream, proc, observer); err != nil {
		logger.WithError(err).Warn("Bridge ended with error")
	}
	if err := proc.Stop(ctx); err != nil {
		logger.WithError(err).Warn("Agent stop failed")
	}
}

// shuttle copies lines both ways until either side ends. Lines from the
// websocket are outbound and lines from the agent are inbound.
func (b *bridge) shuttle(ctx context.Context, stream *transport.WebSocketStream, proc *transport.Process, observer transport.FrameObserver) error {
	var g errgroup.Group
	g.Go(func() error {
		// Stop closes stdin and kills agents that do not exit on their
		// own, which ends the other pump
		defer func() { _ = proc.Stop(ctx) }()
		return b.pump(proc.Stdin(), stream, transport.Outbound, observer)
	})
	g.Go(func() error {
		defer proc.Stdout().Close()
		// unblocks the websocket reader
		defer stream.Close()
		return b.pump(stream, proc.Stdout(), transport.Inbound, observer)
	})
	return g.Wait()
}

func (b *bridge) pump(dst io.Writer, src io.Reader, dir transport.Direction, observer transport.FrameObserver) error {
	lines := transport.NewLineReader(src, b.maxLineBytes)
	for {
		line, err := lines.ReadLine()
		if err != nil {
			var tooLong *transport.LineTooLongError
			if errors.As(err, &tooLong) {
				b.logger.WithError(acperrors.MessageTooLarge(tooLong.Size, tooLong.Max)).
					Warn("Dropping oversized message", logging.String("direction", string(dir)))
				continue
			}
			if errors.Is(err, io.EOF) || isClosed(err) {
				return nil
			}
			return err
		}
		if observer != nil {
			observer(dir, line)
		}
		if _, err := dst.Write(append(line, '\n')); err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}
	}
}

func isClosed(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed)
}

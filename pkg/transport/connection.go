package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

// Connection is one end of a JSON-RPC conversation over a pair of byte
// streams. It correlates outbound requests with their responses and
// dispatches inbound messages to a Handler.
type Connection struct {
	handler Handler
	reader  *LineReader
	rawIn   io.Reader
	writes  *WriteQueue
	pending *pendingTable
	nextID  atomic.Int64
	config  Config
	logger  logging.Logger

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once
	err      error
	inflight sync.WaitGroup
}

// NewConnection returns a connection that writes to w and reads from r.
// Nothing is read until Start is called; requests may be sent before that.
func NewConnection(handler Handler, w io.Writer, r io.Reader, opts ...Option) *Connection {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}
	if len(cfg.Middleware) > 0 {
		handler = Chain(cfg.Middleware...)(handler)
	}

	c := &Connection{
		handler: handler,
		reader:  NewLineReader(r, cfg.MaxLineBytes),
		rawIn:   r,
		pending: newPendingTable(),
		config:  cfg,
		logger:  cfg.Logger.WithFields(logging.Component(cfg.Name)),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.writes = NewWriteQueue(w, cfg.WriteQueueSize, c.observeOutbound)
	return c
}

// Logger returns the connection's logger
func (c *Connection) Logger() logging.Logger {
	return c.logger
}

// Start reads and dispatches messages until the stream ends, Stop is
// called or ctx is cancelled. It returns nil on a clean end of stream.
// Pending outbound requests fail with ErrConnectionClosed once reading
// stops; requests already received are still answered before Start returns.
// Stop and ctx cancellation also cancel the context passed to handlers.
func (c *Connection) Start(ctx context.Context) error {
	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("connection already started")
	}
	c.started = true
	c.cancel = cancel
	c.mu.Unlock()

	select {
	case <-c.stopCh:
		c.shutdown(nil)
		return acperrors.ErrConnectionClosed
	default:
	}

	g, gctx := errgroup.WithContext(ctx)
	readDone := make(chan struct{})

	g.Go(func() error {
		defer close(readDone)
		return c.readLoop(handlerCtx, gctx)
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			c.closeReader()
		case <-c.stopCh:
			c.closeReader()
		case <-readDone:
		}
		return nil
	})

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	c.shutdown(err)
	return err
}

func (c *Connection) readLoop(handlerCtx, ctx context.Context) error {
	for {
		line, err := c.reader.ReadLine()
		if err != nil {
			var tooLong *LineTooLongError
			if errors.As(err, &tooLong) {
				c.event(EventLineTooLong)
				c.logger.WithError(acperrors.MessageTooLarge(tooLong.Size, tooLong.Max)).
					Warn("Dropping oversized message")
				continue
			}
			if errors.Is(err, io.EOF) || c.stopping() || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handleLine(handlerCtx, line)
	}
}

func (c *Connection) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Connection) closeReader() {
	if closer, ok := c.rawIn.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Stop ends the connection and waits until the read loop has exited or ctx
// is done. It is safe to call more than once.
func (c *Connection) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})

	c.mu.Lock()
	started, cancel := c.started, c.cancel
	c.mu.Unlock()
	if !started {
		c.shutdown(nil)
	}
	if cancel != nil {
		cancel()
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the connection has shut down
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, or nil after a clean end
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until the connection has shut down and every inbound request
// handler has returned
func (c *Connection) Wait() {
	<-c.done
	c.inflight.Wait()
}

func (c *Connection) shutdown(cause error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.err = cause
		c.mu.Unlock()

		// handlers waiting on the peer fail first, so every request that
		// was read can still be answered before the writer goes away
		c.pending.closeAll(acperrors.ConnectionClosed(cause))
		c.inflight.Wait()
		c.writes.Close()
		close(c.done)

		if cause != nil {
			c.logger.WithError(cause).Warn("Connection closed")
		} else {
			c.logger.Debug("Connection closed")
		}
	})
}

func (c *Connection) handleLine(ctx context.Context, line []byte) {
	if c.config.Frames != nil {
		c.config.Frames(Inbound, line)
	}

	msg, err := protocol.ParseMessage(line)
	if err != nil {
		c.event(EventParseError)
		id := protocol.ExtractID(line)
		c.logger.WithError(err).Warn("Failed to parse message", logging.Frame(line))
		if id != nil {
			resp := protocol.NewErrorResponse(id, acperrors.ToProtocolError(
				acperrors.ParseError(map[string]string{"details": err.Error()})))
			_ = c.writeMessage(ctx, "response", resp)
		}
		return
	}

	switch msg.Kind() {
	case protocol.KindRequest:
		c.inflight.Add(1)
		go c.handleRequest(ctx, msg)
	case protocol.KindNotification:
		c.handleNotification(ctx, msg)
	case protocol.KindResponse:
		c.handleResponse(msg)
	default:
		c.event(EventInvalidMessage)
		c.logger.Warn("Dropping message without id or method", logging.Frame(line))
	}
}

func (c *Connection) handleRequest(ctx context.Context, msg *protocol.Message) {
	defer c.inflight.Done()

	ctx = logging.ContextWithRequestID(ctx, string(msg.ID))
	result, err := c.invokeRequest(ctx, msg.Method, msg.Params)

	var resp *protocol.Response
	if err == nil {
		resp, err = protocol.NewResponse(msg.ID, result)
	}
	if err != nil {
		resp = acperrors.ToResponse(err, msg.ID)
	}

	if err := c.writeMessage(ctx, "response", resp); err != nil {
		c.logger.WithError(err).Error("Failed to send response",
			logging.Method(msg.Method), logging.RequestID(string(msg.ID)))
	}
}

func (c *Connection) invokeRequest(ctx context.Context, method string, params json.RawMessage) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.event(EventHandlerPanic)
			c.logger.Error("Panic in request handler",
				logging.Method(method),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
			result = nil
			err = acperrors.InternalError(map[string]string{"details": fmt.Sprint(r)})
		}
	}()
	return c.handler.HandleRequest(ctx, method, params)
}

func (c *Connection) handleNotification(ctx context.Context, msg *protocol.Message) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				c.event(EventHandlerPanic)
				c.logger.Error("Panic in notification handler",
					logging.Method(msg.Method),
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return c.handler.HandleNotification(ctx, msg.Method, msg.Params)
	}()
	if err != nil {
		c.event(EventNotificationFailed)
		c.logger.WithError(err).Error("Notification handler failed", logging.Method(msg.Method))
	}
}

func (c *Connection) handleResponse(msg *protocol.Message) {
	id, ok := protocol.ParseID(msg.ID)
	if !ok {
		c.event(EventUnknownResponse)
		c.logger.Warn("Dropping response with foreign id", logging.RequestID(string(msg.ID)))
		return
	}

	var out outcome
	if msg.Error != nil {
		out.err = acperrors.FromProtocolError(msg.Error)
	} else {
		out.result = msg.Result
		if len(out.result) == 0 {
			out.result = json.RawMessage("null")
		}
	}

	if !c.pending.resolve(id, out) {
		c.event(EventUnknownResponse)
		c.logger.Warn("Dropping response for unknown request", logging.Int64("id", id))
	}
}

// SendRequest sends a request and waits for its response, for ctx to be
// done or for the connection to close. ctx also bounds the write, so a
// stalled peer cannot hold the caller past its deadline. An error response from the peer is
// returned as *errors.RequestError.
func (c *Connection) SendRequest(ctx context.Context, method string, params interface{}) (result json.RawMessage, err error) {
	if obs := c.config.Outbound; obs != nil {
		var finish func(error)
		ctx, finish = obs.StartOutbound(ctx, protocol.KindRequest, method)
		defer func() { finish(err) }()
	}

	id := c.nextID.Add(1) - 1
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	slot, err := c.pending.register(id)
	if err != nil {
		return nil, err
	}

	if err := c.writeMessage(ctx, "request", req); err != nil {
		c.pending.forget(id)
		return nil, err
	}

	select {
	case out := <-slot:
		return out.result, out.err
	case <-ctx.Done():
		c.pending.forget(id)
		return nil, ctx.Err()
	}
}

// SendNotification sends a notification. It returns once the message has
// been written.
func (c *Connection) SendNotification(ctx context.Context, method string, params interface{}) (err error) {
	if obs := c.config.Outbound; obs != nil {
		var finish func(error)
		ctx, finish = obs.StartOutbound(ctx, protocol.KindNotification, method)
		defer func() { finish(err) }()
	}

	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	return c.writeMessage(ctx, "notification", n)
}

func (c *Connection) writeMessage(ctx context.Context, kind string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	if err := c.writes.Write(ctx, data); err != nil {
		if errors.Is(err, acperrors.ErrConnectionClosed) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.event(EventWriteFailed)
		c.logger.WithError(err).Error("Failed to write message", logging.String("kind", kind))
		return acperrors.WriteFailed(kind, err)
	}
	return nil
}

func (c *Connection) observeOutbound(line []byte) {
	if c.config.Frames != nil {
		c.config.Frames(Outbound, line)
	}
}

func (c *Connection) event(ev Event) {
	if c.config.Events != nil {
		c.config.Events(ev)
	}
}

// PendingRequests returns the number of outbound requests awaiting a response
func (c *Connection) PendingRequests() int {
	return c.pending.len()
}

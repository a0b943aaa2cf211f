package recorder

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := Open(context.Background(), filepath.Join(t.TempDir(), "frames", "acp.db"), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })
	return rec
}

func TestRecordClassifiesFrames(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	session, err := rec.StartSession(ctx, "client")
	require.NoError(t, err)

	require.NoError(t, session.Record(ctx, transport.Outbound, []byte(`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{}}`)))
	require.NoError(t, session.Record(ctx, transport.Inbound, []byte(`{"jsonrpc":"2.0","method":"session/update","params":{}}`)))
	require.NoError(t, session.Record(ctx, transport.Inbound, []byte(`{"jsonrpc":"2.0","id":0,"result":{}}`)))
	require.NoError(t, session.Record(ctx, transport.Inbound, []byte(`not json`)))

	frames, err := rec.Frames(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	assert.Equal(t, transport.Outbound, frames[0].Direction)
	assert.Equal(t, "request", frames[0].Kind)
	assert.Equal(t, "initialize", frames[0].Method)
	assert.Equal(t, "0", frames[0].JSONRPCID)

	assert.Equal(t, "notification", frames[1].Kind)
	assert.Empty(t, frames[1].JSONRPCID)

	assert.Equal(t, "response", frames[2].Kind)
	assert.Empty(t, frames[2].Method)

	assert.Equal(t, "invalid", frames[3].Kind)
	assert.Equal(t, "not json", frames[3].Raw)
}

func TestSessionLifecycle(t *testing.T) {
	rec := openTestRecorder(t)
	ctx := context.Background()

	session, err := rec.StartSession(ctx, "agent")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)

	info, err := rec.Connection(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent", info.Name)
	assert.Nil(t, info.ClosedAt)

	require.NoError(t, session.Close(ctx))
	info, err = rec.Connection(ctx, session.ID)
	require.NoError(t, err)
	assert.NotNil(t, info.ClosedAt)

	_, err = rec.Connection(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestObserverRecordsConnectionTraffic(t *testing.T) {
	rec := openTestRecorder(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	session, err := rec.StartSession(ctx, "client")
	require.NoError(t, err)

	aIn, bOut := io.Pipe()
	bIn, aOut := io.Pipe()
	server := transport.NewConnection(transport.HandlerFuncs{
		OnRequest: func(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
			return map[string]string{"content": "x"}, nil
		},
	}, aOut, aIn, transport.WithLogger(logging.NewNop()))
	caller := transport.NewConnection(transport.HandlerFuncs{}, bOut, bIn,
		transport.WithLogger(logging.NewNop()),
		transport.WithFrameObserver(session.Observer()),
	)

	runCtx, stop := context.WithCancel(ctx)
	go func() { _ = server.Start(runCtx) }()
	go func() { _ = caller.Start(runCtx) }()
	defer func() {
		stop()
		<-server.Done()
		<-caller.Done()
	}()

	_, err = caller.SendRequest(ctx, "fs/read_text_file", map[string]string{"path": "/a"})
	require.NoError(t, err)

	frames, err := rec.Frames(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	// the response can be recorded before the writer reports the request
	byDirection := map[transport.Direction]Frame{}
	for _, f := range frames {
		byDirection[f.Direction] = f
	}
	assert.Equal(t, "request", byDirection[transport.Outbound].Kind)
	assert.Equal(t, "fs/read_text_file", byDirection[transport.Outbound].Method)
	assert.Equal(t, "response", byDirection[transport.Inbound].Kind)
	assert.Equal(t, "0", byDirection[transport.Inbound].JSONRPCID)
}

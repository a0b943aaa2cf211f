package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *RequestError
		wantCode int
		wantMsg  string
		wantCat  Category
	}{
		{"parse", ParseError(nil), -32700, "Parse error", CategoryTransport},
		{"invalid request", InvalidRequest(nil), -32600, "Invalid request", CategoryValidation},
		{"method not found", MethodNotFound("x/y"), -32601, "Method not found", CategoryRouting},
		{"invalid params", InvalidParams(nil), -32602, "Invalid params", CategoryValidation},
		{"internal", InternalError(nil), -32603, "Internal error", CategoryApplication},
		{"auth required", AuthRequired(nil), -32000, "Authentication required", CategoryAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code())
			assert.Equal(t, tt.wantMsg, tt.err.Message())
			assert.Equal(t, tt.wantCat, tt.err.Category())
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}

	assert.Equal(t, map[string]string{"method": "x/y"}, MethodNotFound("x/y").Data())
}

func TestWithMethodsCopy(t *testing.T) {
	base := InternalError(nil)
	withData := base.WithData("boom")
	withCtx := withData.WithContext(&Context{Method: "session/prompt"})

	assert.Nil(t, base.Data())
	assert.Nil(t, base.Context())
	assert.Equal(t, "boom", withData.Data())
	assert.Nil(t, withData.Context())
	assert.Equal(t, "session/prompt", withCtx.Context().Method)
}

func TestClassifyForwardsRequestErrors(t *testing.T) {
	orig := AuthRequired(map[string]string{"hint": "login"})
	wrapped := fmt.Errorf("prompt: %w", orig)

	assert.Same(t, orig, Classify(orig))
	assert.Same(t, orig, Classify(wrapped))
}

func TestClassifyValidationError(t *testing.T) {
	verr := &protocol.ValidationError{
		Method: "session/new",
		Issues: []protocol.Issue{{Path: "cwd", Expected: "string", Got: "missing"}},
	}

	got := Classify(verr)
	assert.Equal(t, CodeInvalidParams, got.Code())
	assert.Equal(t, verr.Issues, got.Data())
}

func TestClassifyInternalError(t *testing.T) {
	got := Classify(stderrors.New("disk full"))
	assert.Equal(t, CodeInternalError, got.Code())
	assert.Equal(t, "Internal error", got.Message())
	assert.Equal(t, map[string]string{"details": "disk full"}, got.Data())

	got = Classify(stderrors.New(`{"retry":true}`))
	assert.Equal(t, map[string]interface{}{"retry": true}, got.Data())

	assert.Nil(t, Classify(nil))
}

func TestProtocolConversion(t *testing.T) {
	rpcErr := ToProtocolError(MethodNotFound("_zed/x"))
	require.NotNil(t, rpcErr)
	assert.Equal(t, protocol.MethodNotFound, rpcErr.Code)

	data, err := json.Marshal(rpcErr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":-32601,"message":"Method not found","data":{"method":"_zed/x"}}`, string(data))

	back := FromProtocolError(&protocol.Error{Code: -32042, Message: "quota", Data: "x"})
	assert.Equal(t, -32042, back.Code())
	assert.Equal(t, CategoryPeer, back.Category())
	assert.Equal(t, "x", back.Data())

	assert.Nil(t, ToProtocolError(nil))
	assert.Nil(t, FromProtocolError(nil))
}

func TestToResponse(t *testing.T) {
	resp := ToResponse(stderrors.New("nope"), json.RawMessage(`9`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","id":9,"error":{"code":-32603,"message":"Internal error","data":{"details":"nope"}}}`,
		string(data))
}

func TestConnectionClosed(t *testing.T) {
	err := ConnectionClosed(io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, IsCategory(err, CategoryTransport))
	assert.Equal(t, "transport stopped: connection closed: unexpected EOF", err.Error())

	assert.ErrorIs(t, ConnectionClosed(nil), ErrConnectionClosed)
}

func TestWriteFailed(t *testing.T) {
	err := WriteFailed("response", io.ErrClosedPipe)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.True(t, IsCode(err, CodeInternalError))
	assert.Contains(t, err.Error(), "failed to write response")
}

func TestMessageTooLarge(t *testing.T) {
	err := MessageTooLarge(300, 256)
	assert.True(t, IsCode(err, CodeParseError))
	assert.Equal(t, "message of 300 bytes exceeds limit of 256", err.Error())
	assert.Equal(t, map[string]int{"size": 300, "max": 256}, err.Data())
}

func TestErrorCodeRegistry(t *testing.T) {
	codes := KnownCodes()
	assert.Len(t, codes, 6)
	assert.Equal(t, CodeParseError, codes[0])
	assert.Equal(t, "AuthRequired", CodeName(CodeAuthRequired))
	assert.Equal(t, "PeerError", CodeName(42))
	assert.True(t, IsReserved(CodeParseError))
	assert.False(t, IsReserved(1))
	assert.Equal(t, CategoryPeer, NewError(42, "custom", nil).Category())
	assert.Equal(t, "Authentication required", AuthRequired(nil).Message())
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(InvalidParams("bad"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(-32602), decoded["code"])
	assert.Equal(t, "validation", decoded["category"])
}

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeIssues(t *testing.T, method, raw string, dst Validatable) []Issue {
	t.Helper()
	err := DecodeParams(method, json.RawMessage(raw), dst)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, method, verr.Method)
	return verr.Issues
}

func TestDecodeParamsRequiresObject(t *testing.T) {
	for raw, got := range map[string]string{
		``:        "missing",
		`null`:    "null",
		`[]`:      "array",
		`"x"`:     "string",
		`12`:      "number",
		`true`:    "boolean",
		` [1, 2]`: "array",
	} {
		issues := decodeIssues(t, MethodSessionNew, raw, &NewSessionRequest{})
		require.Len(t, issues, 1, raw)
		assert.Equal(t, "object", issues[0].Expected)
		assert.Equal(t, got, issues[0].Got)
	}
}

func TestDecodeParamsReportsAllMissingFields(t *testing.T) {
	issues := decodeIssues(t, MethodSessionLoad, `{}`, &LoadSessionRequest{})

	paths := make([]string, len(issues))
	for i, issue := range issues {
		paths[i] = issue.Path
	}
	assert.Equal(t, []string{"sessionId", "cwd", "mcpServers"}, paths)
}

func TestDecodeParamsAcceptsEmptyIdentifiers(t *testing.T) {
	var prompt PromptRequest
	require.NoError(t, DecodeParams(MethodSessionPrompt,
		json.RawMessage(`{"sessionId":"","prompt":[{"type":"resource_link","name":"","uri":""}]}`), &prompt))
	assert.Equal(t, "", prompt.SessionID)

	var read ReadTextFileRequest
	require.NoError(t, DecodeParams(MethodFSReadTextFile, json.RawMessage(`{"sessionId":"s","path":""}`), &read))
}

func TestDecodeParamsRejectsNullIdentifiers(t *testing.T) {
	issues := decodeIssues(t, MethodFSReadTextFile, `{"sessionId":null,"path":"/a"}`, &ReadTextFileRequest{})
	require.Len(t, issues, 1)
	assert.Equal(t, "sessionId", issues[0].Path)
	assert.Equal(t, "string", issues[0].Expected)
	assert.Equal(t, "missing", issues[0].Got)

	issues = decodeIssues(t, MethodSessionPrompt, `{"sessionId":"s","prompt":[{"type":"resource_link","name":"a"}]}`, &PromptRequest{})
	require.Len(t, issues, 1)
	assert.Equal(t, "prompt[0].uri", issues[0].Path)
}

func TestCheckAcceptsEmptyIdentifiers(t *testing.T) {
	assert.NoError(t, Check(MethodFSReadTextFile, &ReadTextFileRequest{}))
}

func TestDecodeParamsTypeMismatch(t *testing.T) {
	issues := decodeIssues(t, MethodSessionPrompt, `{"sessionId":5,"prompt":[]}`, &PromptRequest{})
	require.Len(t, issues, 1)
	assert.Equal(t, "sessionId", issues[0].Path)
	assert.Equal(t, "string", issues[0].Expected)
	assert.Equal(t, "number", issues[0].Got)
}

func TestDecodeParamsAcceptsValidPrompt(t *testing.T) {
	var req PromptRequest
	err := DecodeParams(MethodSessionPrompt, json.RawMessage(
		`{"sessionId":"s1","prompt":[{"type":"text","text":"hi"},{"type":"resource_link","name":"a.go","uri":"file:///a.go"}]}`),
		&req)
	require.NoError(t, err)
	assert.Equal(t, "s1", req.SessionID)
	require.Len(t, req.Prompt, 2)
	assert.Equal(t, TextBlock("hi"), req.Prompt[0])
	assert.Equal(t, ResourceLinkBlock("a.go", "file:///a.go"), req.Prompt[1])
}

func TestDecodeParamsAcceptsEmptyText(t *testing.T) {
	var req WriteTextFileRequest
	err := DecodeParams(MethodFSWriteTextFile, json.RawMessage(`{"sessionId":"s","path":"/tmp/a","content":""}`), &req)
	assert.NoError(t, err)
}

func TestDecodeParamsReportsVariantPaths(t *testing.T) {
	issues := decodeIssues(t, MethodSessionPrompt,
		`{"sessionId":"s1","prompt":[{"type":"text","text":"ok"},{"type":"video"},{"text":"no type"},{"type":"image","data":"AA=="}]}`,
		&PromptRequest{})

	require.Len(t, issues, 3)
	assert.Equal(t, "prompt[1].type", issues[0].Path)
	assert.Equal(t, `"video"`, issues[0].Got)
	assert.Equal(t, "prompt[2].type", issues[1].Path)
	assert.Equal(t, "missing", issues[1].Got)
	assert.Equal(t, "prompt[3].mimeType", issues[2].Path)
}

func TestDecodeParamsMalformedVariant(t *testing.T) {
	issues := decodeIssues(t, MethodSessionPrompt,
		`{"sessionId":"s1","prompt":[{"type":"text","text":5}]}`, &PromptRequest{})
	require.Len(t, issues, 1)
	assert.Equal(t, "prompt[0]", issues[0].Path)
	assert.Equal(t, "valid variant", issues[0].Expected)
	assert.Contains(t, issues[0].Got, "text")
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{
		Method: MethodSessionNew,
		Issues: []Issue{
			{Path: "cwd", Expected: "string", Got: "missing"},
			{Path: "mcpServers", Expected: "array"},
		},
	}
	assert.Equal(t,
		"invalid params for session/new: cwd: expected string, got missing; mcpServers: expected array",
		err.Error())
}

func TestCheckValidatesBuiltValues(t *testing.T) {
	assert.NoError(t, Check(MethodSessionPrompt, &PromptResponse{StopReason: StopReasonEndTurn}))

	err := Check(MethodSessionPrompt, &PromptResponse{StopReason: "done"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopReason")

	update := AgentMessageChunk(TextBlock(""))
	assert.NoError(t, Check(MethodSessionUpdate, &SessionNotification{SessionID: "s", Update: update}))

	err = Check(MethodSessionUpdate, &SessionNotification{SessionID: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update.sessionUpdate")
}

func TestValidatorPaths(t *testing.T) {
	v := validatorFor(json.RawMessage(`{"a":[]}`))
	v.Field("a").Index(2).Field("b").Fail("x", "y")
	v.Field("").RequireString("c", "")
	v.Enum("d", "", true, "one")
	v.Enum("e", "two", false, "one")

	require.False(t, v.Valid())
	issues := v.Issues()
	require.Len(t, issues, 3)
	assert.Equal(t, "a[2].b", issues[0].Path)
	assert.Equal(t, "c", issues[1].Path)
	assert.Equal(t, "e", issues[2].Path)
	assert.Equal(t, `one of "one"`, issues[2].Expected)
}

func TestDecodeResult(t *testing.T) {
	var read ReadTextFileResponse
	require.NoError(t, DecodeResult(MethodFSReadTextFile, json.RawMessage(`null`), &read))
	assert.Equal(t, "", read.Content)

	var created CreateTerminalResponse
	err := DecodeResult(MethodTerminalCreate, json.RawMessage(`{}`), &created)
	require.Error(t, err)
	var rerr *ResultError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "terminalId", rerr.Issues[0].Path)
	assert.Contains(t, err.Error(), "invalid result for terminal/create")
}

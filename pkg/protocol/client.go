package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ReadTextFileRequest asks the client for file contents. Path is absolute.
type ReadTextFileRequest struct {
	Meta      Meta   `json:"_meta,omitempty"`
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	// Line is 1-based
	Line  *int `json:"line,omitempty"`
	Limit *int `json:"limit,omitempty"`
}

// Validate implements Validatable
func (r *ReadTextFileRequest) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	v.RequireString("path", r.Path)
	if r.Line != nil && *r.Line < 1 {
		v.Field("line").Fail("positive integer", "out of range")
	}
	if r.Limit != nil && *r.Limit < 0 {
		v.Field("limit").Fail("non-negative integer", "out of range")
	}
}

// ReadTextFileResponse carries file contents
type ReadTextFileResponse struct {
	Meta    Meta   `json:"_meta,omitempty"`
	Content string `json:"content"`
}

// Validate implements Validatable
func (r *ReadTextFileResponse) Validate(v *Validator) {}

// WriteTextFileRequest asks the client to write a file
type WriteTextFileRequest struct {
	Meta      Meta   `json:"_meta,omitempty"`
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

// Validate implements Validatable
func (r *WriteTextFileRequest) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	v.RequireString("path", r.Path)
}

// WriteTextFileResponse is empty
type WriteTextFileResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// Validate implements Validatable
func (r *WriteTextFileResponse) Validate(v *Validator) {}

// PermissionOptionKind hints how a client should present an option
type PermissionOptionKind string

const (
	PermissionAllowOnce    PermissionOptionKind = "allow_once"
	PermissionAllowAlways  PermissionOptionKind = "allow_always"
	PermissionRejectOnce   PermissionOptionKind = "reject_once"
	PermissionRejectAlways PermissionOptionKind = "reject_always"
)

var permissionOptionKinds = []string{
	string(PermissionAllowOnce), string(PermissionAllowAlways),
	string(PermissionRejectOnce), string(PermissionRejectAlways),
}

// PermissionOption is a choice offered to the user
type PermissionOption struct {
	Meta     Meta                 `json:"_meta,omitempty"`
	OptionID string               `json:"optionId"`
	Name     string               `json:"name"`
	Kind     PermissionOptionKind `json:"kind"`
}

// RequestPermissionRequest asks the user to authorize a tool call
type RequestPermissionRequest struct {
	Meta      Meta               `json:"_meta,omitempty"`
	SessionID string             `json:"sessionId"`
	ToolCall  ToolCallUpdate     `json:"toolCall"`
	Options   []PermissionOption `json:"options"`
}

// Validate implements Validatable
func (r *RequestPermissionRequest) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	r.ToolCall.Validate(v.Field("toolCall"))
	v.RequireArray("options", r.Options != nil)
	for i, opt := range r.Options {
		item := v.Field("options").Index(i)
		item.RequireString("optionId", opt.OptionID)
		item.RequireString("name", opt.Name)
		item.Enum("kind", string(opt.Kind), false, permissionOptionKinds...)
	}
}

// FindOption returns the first option of the given kind
func (r *RequestPermissionRequest) FindOption(kind PermissionOptionKind) (PermissionOption, bool) {
	for _, opt := range r.Options {
		if opt.Kind == kind {
			return opt, true
		}
	}
	return PermissionOption{}, false
}

// Permission outcome discriminators
const (
	OutcomeCancelled = "cancelled"
	OutcomeSelected  = "selected"
)

// RequestPermissionOutcome is the user's decision. A nil Selected means the
// prompt turn was cancelled before the user chose.
type RequestPermissionOutcome struct {
	Selected *SelectedOutcome

	state union
}

// SelectedOutcome names the chosen option
type SelectedOutcome struct {
	OptionID string `json:"optionId"`
}

// CancelledOutcome returns the outcome for a cancelled prompt turn
func CancelledOutcome() RequestPermissionOutcome {
	return RequestPermissionOutcome{}
}

// SelectOption returns the outcome choosing optionID
func SelectOption(optionID string) RequestPermissionOutcome {
	return RequestPermissionOutcome{Selected: &SelectedOutcome{OptionID: optionID}}
}

// Cancelled reports whether the outcome is cancelled
func (o RequestPermissionOutcome) Cancelled() bool {
	return o.Selected == nil
}

// MarshalJSON implements json.Marshaler
func (o RequestPermissionOutcome) MarshalJSON() ([]byte, error) {
	if o.Selected != nil {
		return marshalTagged("outcome", OutcomeSelected, o.Selected)
	}
	return marshalTagged("outcome", OutcomeCancelled, nil)
}

// UnmarshalJSON implements json.Unmarshaler
func (o *RequestPermissionOutcome) UnmarshalJSON(data []byte) error {
	*o = RequestPermissionOutcome{}
	if _, ok := o.state.decodeTag(data, "outcome"); !ok {
		return nil
	}
	matched := false
	switch o.state.tag {
	case OutcomeSelected:
		o.Selected = &SelectedOutcome{}
		o.state.decodeVariant(data, o.Selected)
		matched = true
	case OutcomeCancelled:
		matched = true
	}
	o.state.settle(matched)
	return nil
}

// Validate implements Validatable
func (o *RequestPermissionOutcome) Validate(v *Validator) {
	tag := OutcomeCancelled
	if o.Selected != nil {
		tag = OutcomeSelected
	}
	if !o.state.resolved(tag).report(v, "outcome", OutcomeCancelled, OutcomeSelected) {
		return
	}
	if o.Selected != nil {
		v.RequireString("optionId", o.Selected.OptionID)
	}
}

// RequestPermissionResponse carries the user's decision
type RequestPermissionResponse struct {
	Meta    Meta                     `json:"_meta,omitempty"`
	Outcome RequestPermissionOutcome `json:"outcome"`
}

// Validate implements Validatable
func (r *RequestPermissionResponse) Validate(v *Validator) {
	r.Outcome.Validate(v.Field("outcome"))
}

// CreateTerminalRequest starts a command in a client-managed terminal
type CreateTerminalRequest struct {
	Meta            Meta          `json:"_meta,omitempty"`
	SessionID       string        `json:"sessionId"`
	Command         string        `json:"command"`
	Args            []string      `json:"args,omitempty"`
	Cwd             *string       `json:"cwd,omitempty"`
	Env             []EnvVariable `json:"env,omitempty"`
	OutputByteLimit *int          `json:"outputByteLimit,omitempty"`
}

// Validate implements Validatable
func (r *CreateTerminalRequest) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	v.RequireString("command", r.Command)
	for i, env := range r.Env {
		v.Field("env").Index(i).RequireString("name", env.Name)
	}
	if r.OutputByteLimit != nil && *r.OutputByteLimit < 0 {
		v.Field("outputByteLimit").Fail("non-negative integer", "out of range")
	}
}

// CreateTerminalResponse names the created terminal
type CreateTerminalResponse struct {
	Meta       Meta   `json:"_meta,omitempty"`
	TerminalID string `json:"terminalId"`
}

// Validate implements Validatable
func (r *CreateTerminalResponse) Validate(v *Validator) {
	v.RequireString("terminalId", r.TerminalID)
}

// TerminalRequest addresses one terminal of a session. It is the params of
// terminal/output, terminal/wait_for_exit, terminal/kill and terminal/release.
type TerminalRequest struct {
	Meta       Meta   `json:"_meta,omitempty"`
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}

// Validate implements Validatable
func (r *TerminalRequest) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	v.RequireString("terminalId", r.TerminalID)
}

// Named params of the terminal methods
type (
	TerminalOutputRequest      = TerminalRequest
	WaitForTerminalExitRequest = TerminalRequest
	KillTerminalRequest        = TerminalRequest
	ReleaseTerminalRequest     = TerminalRequest
)

// TerminalExitStatus describes how a command ended
type TerminalExitStatus struct {
	Meta     Meta    `json:"_meta,omitempty"`
	ExitCode *int    `json:"exitCode,omitempty"`
	Signal   *string `json:"signal,omitempty"`
}

// TerminalOutputResponse is a snapshot of terminal output
type TerminalOutputResponse struct {
	Meta       Meta                `json:"_meta,omitempty"`
	Output     string              `json:"output"`
	Truncated  bool                `json:"truncated"`
	ExitStatus *TerminalExitStatus `json:"exitStatus,omitempty"`
}

// Validate implements Validatable
func (r *TerminalOutputResponse) Validate(v *Validator) {}

// WaitForTerminalExitResponse is returned once the command exits
type WaitForTerminalExitResponse struct {
	Meta     Meta    `json:"_meta,omitempty"`
	ExitCode *int    `json:"exitCode,omitempty"`
	Signal   *string `json:"signal,omitempty"`
}

// Validate implements Validatable
func (r *WaitForTerminalExitResponse) Validate(v *Validator) {}

// KillTerminalResponse is empty
type KillTerminalResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// Validate implements Validatable
func (r *KillTerminalResponse) Validate(v *Validator) {}

// ReleaseTerminalResponse is empty
type ReleaseTerminalResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// Validate implements Validatable
func (r *ReleaseTerminalResponse) Validate(v *Validator) {}

// DecodeResult parses a response result into dst and validates it. Null is
// decoded as the empty object.
func DecodeResult(method string, raw json.RawMessage, dst Validatable) error {
	if len(raw) == 0 || bytes.Equal(raw, nullJSON) {
		raw = json.RawMessage("{}")
	}
	err := DecodeParams(method, raw, dst)
	var verr *ValidationError
	if errors.As(err, &verr) {
		return &ResultError{Method: method, Issues: verr.Issues}
	}
	return err
}

// ResultError reports a malformed response from the peer
type ResultError struct {
	Method string
	Issues []Issue
}

// Error implements the error interface
func (e *ResultError) Error() string {
	return formatIssues("invalid result", e.Method, e.Issues)
}

package protocol

import (
	"encoding/json"
	"errors"
)

// ToolKind categorizes a tool call for display
type ToolKind string

const (
	ToolKindRead       ToolKind = "read"
	ToolKindEdit       ToolKind = "edit"
	ToolKindDelete     ToolKind = "delete"
	ToolKindMove       ToolKind = "move"
	ToolKindSearch     ToolKind = "search"
	ToolKindExecute    ToolKind = "execute"
	ToolKindThink      ToolKind = "think"
	ToolKindFetch      ToolKind = "fetch"
	ToolKindSwitchMode ToolKind = "switch_mode"
	ToolKindOther      ToolKind = "other"
)

var toolKinds = []string{
	string(ToolKindRead), string(ToolKindEdit), string(ToolKindDelete), string(ToolKindMove),
	string(ToolKindSearch), string(ToolKindExecute), string(ToolKindThink), string(ToolKindFetch),
	string(ToolKindSwitchMode), string(ToolKindOther),
}

// ToolCallStatus is the execution state of a tool call
type ToolCallStatus string

const (
	ToolCallStatusPending    ToolCallStatus = "pending"
	ToolCallStatusInProgress ToolCallStatus = "in_progress"
	ToolCallStatusCompleted  ToolCallStatus = "completed"
	ToolCallStatusFailed     ToolCallStatus = "failed"
)

var toolCallStatuses = []string{
	string(ToolCallStatusPending), string(ToolCallStatusInProgress),
	string(ToolCallStatusCompleted), string(ToolCallStatusFailed),
}

// ToolCallLocation is a file location a tool call touches
type ToolCallLocation struct {
	Meta Meta   `json:"_meta,omitempty"`
	Path string `json:"path"`
	Line *int   `json:"line,omitempty"`
}

// Tool call content discriminators
const (
	ToolCallContentTypeContent  = "content"
	ToolCallContentTypeDiff     = "diff"
	ToolCallContentTypeTerminal = "terminal"
)

var toolCallContentTypes = []string{
	ToolCallContentTypeContent, ToolCallContentTypeDiff, ToolCallContentTypeTerminal,
}

// ContentToolCallContent wraps a regular content block
type ContentToolCallContent struct {
	Meta    Meta         `json:"_meta,omitempty"`
	Content ContentBlock `json:"content"`
}

// Diff shows a file modification
type Diff struct {
	Meta    Meta    `json:"_meta,omitempty"`
	Path    string  `json:"path"`
	NewText string  `json:"newText"`
	OldText *string `json:"oldText,omitempty"`
}

// TerminalToolCallContent embeds a terminal by id. The reference stays
// displayable after the terminal is released.
type TerminalToolCallContent struct {
	TerminalID string `json:"terminalId"`
}

// ToolCallContent is the tagged union of content produced by a tool call
type ToolCallContent struct {
	Content  *ContentToolCallContent
	Diff     *Diff
	Terminal *TerminalToolCallContent

	state union
}

// ToolContent wraps a content block as tool call content
func ToolContent(block ContentBlock) ToolCallContent {
	return ToolCallContent{Content: &ContentToolCallContent{Content: block}}
}

// ToolDiff returns diff tool call content
func ToolDiff(path, newText string, oldText *string) ToolCallContent {
	return ToolCallContent{Diff: &Diff{Path: path, NewText: newText, OldText: oldText}}
}

// ToolTerminal returns terminal tool call content
func ToolTerminal(terminalID string) ToolCallContent {
	return ToolCallContent{Terminal: &TerminalToolCallContent{TerminalID: terminalID}}
}

func (c ToolCallContent) tag() string {
	switch {
	case c.Content != nil:
		return ToolCallContentTypeContent
	case c.Diff != nil:
		return ToolCallContentTypeDiff
	case c.Terminal != nil:
		return ToolCallContentTypeTerminal
	default:
		return ""
	}
}

// MarshalJSON implements json.Marshaler
func (c ToolCallContent) MarshalJSON() ([]byte, error) {
	switch {
	case c.Content != nil:
		return marshalTagged("type", ToolCallContentTypeContent, c.Content)
	case c.Diff != nil:
		return marshalTagged("type", ToolCallContentTypeDiff, c.Diff)
	case c.Terminal != nil:
		return marshalTagged("type", ToolCallContentTypeTerminal, c.Terminal)
	default:
		return nil, errors.New("tool call content has no variant set")
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (c *ToolCallContent) UnmarshalJSON(data []byte) error {
	*c = ToolCallContent{}
	if _, ok := c.state.decodeTag(data, "type"); !ok {
		return nil
	}
	switch c.state.tag {
	case ToolCallContentTypeContent:
		c.Content = &ContentToolCallContent{}
		c.state.decodeVariant(data, c.Content)
	case ToolCallContentTypeDiff:
		c.Diff = &Diff{}
		c.state.decodeVariant(data, c.Diff)
	case ToolCallContentTypeTerminal:
		c.Terminal = &TerminalToolCallContent{}
		c.state.decodeVariant(data, c.Terminal)
	}
	c.state.settle(c.tag() != "")
	return nil
}

// Validate implements Validatable
func (c *ToolCallContent) Validate(v *Validator) {
	if !c.state.resolved(c.tag()).report(v, "type", toolCallContentTypes...) {
		return
	}
	switch {
	case c.Content != nil:
		c.Content.Content.Validate(v.Field("content"))
	case c.Diff != nil:
		v.RequireString("path", c.Diff.Path)
	case c.Terminal != nil:
		v.RequireString("terminalId", c.Terminal.TerminalID)
	}
}

// ToolCall announces a new tool invocation
type ToolCall struct {
	Meta       Meta                   `json:"_meta,omitempty"`
	ToolCallID string                 `json:"toolCallId"`
	Title      string                 `json:"title"`
	Kind       ToolKind               `json:"kind,omitempty"`
	Status     ToolCallStatus         `json:"status,omitempty"`
	Content    []ToolCallContent      `json:"content,omitempty"`
	Locations  []ToolCallLocation     `json:"locations,omitempty"`
	RawInput   map[string]interface{} `json:"rawInput,omitempty"`
	RawOutput  map[string]interface{} `json:"rawOutput,omitempty"`
}

// Validate implements Validatable
func (t *ToolCall) Validate(v *Validator) {
	v.RequireString("toolCallId", t.ToolCallID)
	v.RequireString("title", t.Title)
	v.Enum("kind", string(t.Kind), true, toolKinds...)
	v.Enum("status", string(t.Status), true, toolCallStatuses...)
	validateToolCallBody(v, t.Content, t.Locations)
}

// ToolCallUpdate changes fields of an existing tool call. Unset fields are
// left unchanged by the receiver.
type ToolCallUpdate struct {
	Meta       Meta                   `json:"_meta,omitempty"`
	ToolCallID string                 `json:"toolCallId"`
	Title      *string                `json:"title,omitempty"`
	Kind       *ToolKind              `json:"kind,omitempty"`
	Status     *ToolCallStatus        `json:"status,omitempty"`
	Content    []ToolCallContent      `json:"content,omitempty"`
	Locations  []ToolCallLocation     `json:"locations,omitempty"`
	RawInput   map[string]interface{} `json:"rawInput,omitempty"`
	RawOutput  map[string]interface{} `json:"rawOutput,omitempty"`
}

// Validate implements Validatable
func (t *ToolCallUpdate) Validate(v *Validator) {
	v.RequireString("toolCallId", t.ToolCallID)
	if t.Kind != nil {
		v.Enum("kind", string(*t.Kind), false, toolKinds...)
	}
	if t.Status != nil {
		v.Enum("status", string(*t.Status), false, toolCallStatuses...)
	}
	validateToolCallBody(v, t.Content, t.Locations)
}

func validateToolCallBody(v *Validator, content []ToolCallContent, locations []ToolCallLocation) {
	for i := range content {
		content[i].Validate(v.Field("content").Index(i))
	}
	for i := range locations {
		v.Field("locations").Index(i).RequireString("path", locations[i].Path)
	}
}

// PlanEntryPriority ranks plan entries
type PlanEntryPriority string

const (
	PlanEntryPriorityHigh   PlanEntryPriority = "high"
	PlanEntryPriorityMedium PlanEntryPriority = "medium"
	PlanEntryPriorityLow    PlanEntryPriority = "low"
)

// PlanEntryStatus tracks progress of a plan entry
type PlanEntryStatus string

const (
	PlanEntryStatusPending    PlanEntryStatus = "pending"
	PlanEntryStatusInProgress PlanEntryStatus = "in_progress"
	PlanEntryStatusCompleted  PlanEntryStatus = "completed"
)

// PlanEntry is one task of an agent's execution plan
type PlanEntry struct {
	Meta     Meta              `json:"_meta,omitempty"`
	Content  string            `json:"content"`
	Priority PlanEntryPriority `json:"priority"`
	Status   PlanEntryStatus   `json:"status"`
}

// Validate implements Validatable
func (p *PlanEntry) Validate(v *Validator) {
	v.Enum("priority", string(p.Priority), false,
		string(PlanEntryPriorityHigh), string(PlanEntryPriorityMedium), string(PlanEntryPriorityLow))
	v.Enum("status", string(p.Status), false,
		string(PlanEntryStatusPending), string(PlanEntryStatusInProgress), string(PlanEntryStatusCompleted))
}

// AvailableCommandInput describes free-form command input
type AvailableCommandInput struct {
	Hint string `json:"hint"`
}

// AvailableCommand is a slash command the agent accepts
type AvailableCommand struct {
	Meta        Meta                   `json:"_meta,omitempty"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Input       *AvailableCommandInput `json:"input,omitempty"`
}

// Validate implements Validatable
func (c *AvailableCommand) Validate(v *Validator) {
	v.RequireString("name", c.Name)
}

var _ json.Marshaler = ToolCallContent{}

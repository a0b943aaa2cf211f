package protocol

import "errors"

// StopReason tells the client why a prompt turn ended
type StopReason string

const (
	StopReasonEndTurn         StopReason = "end_turn"
	StopReasonMaxTokens       StopReason = "max_tokens"
	StopReasonMaxTurnRequests StopReason = "max_turn_requests"
	StopReasonRefusal         StopReason = "refusal"
	StopReasonCancelled       StopReason = "cancelled"
)

var stopReasons = []string{
	string(StopReasonEndTurn), string(StopReasonMaxTokens), string(StopReasonMaxTurnRequests),
	string(StopReasonRefusal), string(StopReasonCancelled),
}

// SessionMode is an operating mode the agent offers (e.g. "ask", "code")
type SessionMode struct {
	Meta        Meta    `json:"_meta,omitempty"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// SessionModeState lists the modes of a session and the active one
type SessionModeState struct {
	Meta           Meta          `json:"_meta,omitempty"`
	AvailableModes []SessionMode `json:"availableModes"`
	CurrentModeID  string        `json:"currentModeId"`
}

// Validate implements Validatable
func (s *SessionModeState) Validate(v *Validator) {
	v.RequireArray("availableModes", s.AvailableModes != nil)
	for i, mode := range s.AvailableModes {
		item := v.Field("availableModes").Index(i)
		item.RequireString("id", mode.ID)
		item.RequireString("name", mode.Name)
	}
	v.RequireString("currentModeId", s.CurrentModeID)
}

// NewSessionRequest creates a conversation session
type NewSessionRequest struct {
	Meta       Meta        `json:"_meta,omitempty"`
	Cwd        string      `json:"cwd"`
	McpServers []McpServer `json:"mcpServers"`
}

// Validate implements Validatable
func (r *NewSessionRequest) Validate(v *Validator) {
	v.RequireString("cwd", r.Cwd)
	validateMcpServers(v, r.McpServers)
}

// NewSessionResponse carries the id of the created session
type NewSessionResponse struct {
	Meta      Meta              `json:"_meta,omitempty"`
	SessionID string            `json:"sessionId"`
	Modes     *SessionModeState `json:"modes,omitempty"`
}

// Validate implements Validatable
func (r *NewSessionResponse) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	if r.Modes != nil {
		r.Modes.Validate(v.Field("modes"))
	}
}

// LoadSessionRequest resumes a previous session
type LoadSessionRequest struct {
	Meta       Meta        `json:"_meta,omitempty"`
	SessionID  string      `json:"sessionId"`
	Cwd        string      `json:"cwd"`
	McpServers []McpServer `json:"mcpServers"`
}

// Validate implements Validatable
func (r *LoadSessionRequest) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	v.RequireString("cwd", r.Cwd)
	validateMcpServers(v, r.McpServers)
}

// LoadSessionResponse is returned once the history has been replayed
type LoadSessionResponse struct {
	Meta  Meta              `json:"_meta,omitempty"`
	Modes *SessionModeState `json:"modes,omitempty"`
}

// Validate implements Validatable
func (r *LoadSessionResponse) Validate(v *Validator) {
	if r.Modes != nil {
		r.Modes.Validate(v.Field("modes"))
	}
}

// SetSessionModeRequest switches the active mode
type SetSessionModeRequest struct {
	Meta      Meta   `json:"_meta,omitempty"`
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

// Validate implements Validatable
func (r *SetSessionModeRequest) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	v.RequireString("modeId", r.ModeID)
}

// SetSessionModeResponse is empty
type SetSessionModeResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// Validate implements Validatable
func (r *SetSessionModeResponse) Validate(v *Validator) {}

// PromptRequest sends user input to a session
type PromptRequest struct {
	Meta      Meta           `json:"_meta,omitempty"`
	SessionID string         `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// Validate implements Validatable
func (r *PromptRequest) Validate(v *Validator) {
	v.RequireString("sessionId", r.SessionID)
	v.RequireArray("prompt", r.Prompt != nil)
	for i := range r.Prompt {
		r.Prompt[i].Validate(v.Field("prompt").Index(i))
	}
}

// PromptResponse ends a prompt turn
type PromptResponse struct {
	Meta       Meta       `json:"_meta,omitempty"`
	StopReason StopReason `json:"stopReason"`
}

// Validate implements Validatable
func (r *PromptResponse) Validate(v *Validator) {
	v.Enum("stopReason", string(r.StopReason), false, stopReasons...)
}

// CancelNotification asks the agent to stop the current prompt turn. The
// agent still answers the original prompt request, with StopReasonCancelled.
type CancelNotification struct {
	Meta      Meta   `json:"_meta,omitempty"`
	SessionID string `json:"sessionId"`
}

// Validate implements Validatable
func (n *CancelNotification) Validate(v *Validator) {
	v.RequireString("sessionId", n.SessionID)
}

// SessionNotification streams a session update to the client
type SessionNotification struct {
	Meta      Meta          `json:"_meta,omitempty"`
	SessionID string        `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
}

// Validate implements Validatable
func (n *SessionNotification) Validate(v *Validator) {
	v.RequireString("sessionId", n.SessionID)
	n.Update.Validate(v.Field("update"))
}

// Session update discriminators
const (
	UpdateUserMessageChunk        = "user_message_chunk"
	UpdateAgentMessageChunk       = "agent_message_chunk"
	UpdateAgentThoughtChunk       = "agent_thought_chunk"
	UpdateToolCall                = "tool_call"
	UpdateToolCallUpdate          = "tool_call_update"
	UpdatePlan                    = "plan"
	UpdateAvailableCommandsUpdate = "available_commands_update"
	UpdateCurrentModeUpdate       = "current_mode_update"
)

var sessionUpdateKinds = []string{
	UpdateUserMessageChunk, UpdateAgentMessageChunk, UpdateAgentThoughtChunk,
	UpdateToolCall, UpdateToolCallUpdate, UpdatePlan,
	UpdateAvailableCommandsUpdate, UpdateCurrentModeUpdate,
}

// ContentChunk is a streamed piece of a message
type ContentChunk struct {
	Content ContentBlock `json:"content"`
}

// Plan replaces the agent's current plan
type Plan struct {
	Meta    Meta        `json:"_meta,omitempty"`
	Entries []PlanEntry `json:"entries"`
}

// AvailableCommandsUpdate replaces the list of commands
type AvailableCommandsUpdate struct {
	AvailableCommands []AvailableCommand `json:"availableCommands"`
}

// CurrentModeUpdate reports a mode switch
type CurrentModeUpdate struct {
	CurrentModeID string `json:"currentModeId"`
}

// SessionUpdate is the tagged union carried by session/update, keyed by
// the "sessionUpdate" field. Exactly one variant pointer is set.
type SessionUpdate struct {
	UserMessageChunk        *ContentChunk
	AgentMessageChunk       *ContentChunk
	AgentThoughtChunk       *ContentChunk
	ToolCall                *ToolCall
	ToolCallUpdate          *ToolCallUpdate
	Plan                    *Plan
	AvailableCommandsUpdate *AvailableCommandsUpdate
	CurrentModeUpdate       *CurrentModeUpdate

	state union
}

// AgentMessageChunk returns an update streaming agent output
func AgentMessageChunk(block ContentBlock) SessionUpdate {
	return SessionUpdate{AgentMessageChunk: &ContentChunk{Content: block}}
}

// AgentThoughtChunk returns an update streaming agent reasoning
func AgentThoughtChunk(block ContentBlock) SessionUpdate {
	return SessionUpdate{AgentThoughtChunk: &ContentChunk{Content: block}}
}

// UserMessageChunk returns an update replaying user input
func UserMessageChunk(block ContentBlock) SessionUpdate {
	return SessionUpdate{UserMessageChunk: &ContentChunk{Content: block}}
}

// StartToolCall returns a tool_call update
func StartToolCall(call ToolCall) SessionUpdate {
	return SessionUpdate{ToolCall: &call}
}

// ToolCallProgress returns a tool_call_update update
func ToolCallProgress(update ToolCallUpdate) SessionUpdate {
	return SessionUpdate{ToolCallUpdate: &update}
}

// UpdatePlanEntries returns a plan update
func UpdatePlanEntries(entries ...PlanEntry) SessionUpdate {
	if entries == nil {
		entries = []PlanEntry{}
	}
	return SessionUpdate{Plan: &Plan{Entries: entries}}
}

// Kind returns the discriminator of the populated variant
func (u SessionUpdate) Kind() string {
	switch {
	case u.UserMessageChunk != nil:
		return UpdateUserMessageChunk
	case u.AgentMessageChunk != nil:
		return UpdateAgentMessageChunk
	case u.AgentThoughtChunk != nil:
		return UpdateAgentThoughtChunk
	case u.ToolCall != nil:
		return UpdateToolCall
	case u.ToolCallUpdate != nil:
		return UpdateToolCallUpdate
	case u.Plan != nil:
		return UpdatePlan
	case u.AvailableCommandsUpdate != nil:
		return UpdateAvailableCommandsUpdate
	case u.CurrentModeUpdate != nil:
		return UpdateCurrentModeUpdate
	default:
		return ""
	}
}

// MarshalJSON implements json.Marshaler
func (u SessionUpdate) MarshalJSON() ([]byte, error) {
	const key = "sessionUpdate"
	switch {
	case u.UserMessageChunk != nil:
		return marshalTagged(key, UpdateUserMessageChunk, u.UserMessageChunk)
	case u.AgentMessageChunk != nil:
		return marshalTagged(key, UpdateAgentMessageChunk, u.AgentMessageChunk)
	case u.AgentThoughtChunk != nil:
		return marshalTagged(key, UpdateAgentThoughtChunk, u.AgentThoughtChunk)
	case u.ToolCall != nil:
		return marshalTagged(key, UpdateToolCall, u.ToolCall)
	case u.ToolCallUpdate != nil:
		return marshalTagged(key, UpdateToolCallUpdate, u.ToolCallUpdate)
	case u.Plan != nil:
		return marshalTagged(key, UpdatePlan, u.Plan)
	case u.AvailableCommandsUpdate != nil:
		return marshalTagged(key, UpdateAvailableCommandsUpdate, u.AvailableCommandsUpdate)
	case u.CurrentModeUpdate != nil:
		return marshalTagged(key, UpdateCurrentModeUpdate, u.CurrentModeUpdate)
	default:
		return nil, errors.New("session update has no variant set")
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (u *SessionUpdate) UnmarshalJSON(data []byte) error {
	*u = SessionUpdate{}
	if _, ok := u.state.decodeTag(data, "sessionUpdate"); !ok {
		return nil
	}
	switch u.state.tag {
	case UpdateUserMessageChunk:
		u.UserMessageChunk = &ContentChunk{}
		u.state.decodeVariant(data, u.UserMessageChunk)
	case UpdateAgentMessageChunk:
		u.AgentMessageChunk = &ContentChunk{}
		u.state.decodeVariant(data, u.AgentMessageChunk)
	case UpdateAgentThoughtChunk:
		u.AgentThoughtChunk = &ContentChunk{}
		u.state.decodeVariant(data, u.AgentThoughtChunk)
	case UpdateToolCall:
		u.ToolCall = &ToolCall{}
		u.state.decodeVariant(data, u.ToolCall)
	case UpdateToolCallUpdate:
		u.ToolCallUpdate = &ToolCallUpdate{}
		u.state.decodeVariant(data, u.ToolCallUpdate)
	case UpdatePlan:
		u.Plan = &Plan{}
		u.state.decodeVariant(data, u.Plan)
	case UpdateAvailableCommandsUpdate:
		u.AvailableCommandsUpdate = &AvailableCommandsUpdate{}
		u.state.decodeVariant(data, u.AvailableCommandsUpdate)
	case UpdateCurrentModeUpdate:
		u.CurrentModeUpdate = &CurrentModeUpdate{}
		u.state.decodeVariant(data, u.CurrentModeUpdate)
	}
	u.state.settle(u.Kind() != "")
	return nil
}

// Validate implements Validatable
func (u *SessionUpdate) Validate(v *Validator) {
	if !u.state.resolved(u.Kind()).report(v, "sessionUpdate", sessionUpdateKinds...) {
		return
	}
	switch {
	case u.UserMessageChunk != nil:
		u.UserMessageChunk.Content.Validate(v.Field("content"))
	case u.AgentMessageChunk != nil:
		u.AgentMessageChunk.Content.Validate(v.Field("content"))
	case u.AgentThoughtChunk != nil:
		u.AgentThoughtChunk.Content.Validate(v.Field("content"))
	case u.ToolCall != nil:
		u.ToolCall.Validate(v)
	case u.ToolCallUpdate != nil:
		u.ToolCallUpdate.Validate(v)
	case u.Plan != nil:
		v.RequireArray("entries", u.Plan.Entries != nil)
		for i := range u.Plan.Entries {
			u.Plan.Entries[i].Validate(v.Field("entries").Index(i))
		}
	case u.AvailableCommandsUpdate != nil:
		v.RequireArray("availableCommands", u.AvailableCommandsUpdate.AvailableCommands != nil)
		for i := range u.AvailableCommandsUpdate.AvailableCommands {
			u.AvailableCommandsUpdate.AvailableCommands[i].Validate(v.Field("availableCommands").Index(i))
		}
	case u.CurrentModeUpdate != nil:
		v.RequireString("currentModeId", u.CurrentModeUpdate.CurrentModeID)
	}
}

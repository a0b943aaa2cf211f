package protocol

import "strings"

const (
	// ProtocolVersion is the protocol revision negotiated during initialize
	ProtocolVersion = 1

	// ExtensionPrefix marks application-defined methods and notifications
	ExtensionPrefix = "_"
)

// Methods the Agent exposes to the Client
const (
	MethodInitialize     = "initialize"
	MethodAuthenticate   = "authenticate"
	MethodSessionNew     = "session/new"
	MethodSessionLoad    = "session/load"
	MethodSessionSetMode = "session/set_mode"
	MethodSessionPrompt  = "session/prompt"
	MethodSessionCancel  = "session/cancel"
)

// Methods the Client exposes to the Agent
const (
	MethodFSReadTextFile           = "fs/read_text_file"
	MethodFSWriteTextFile          = "fs/write_text_file"
	MethodSessionRequestPermission = "session/request_permission"
	MethodSessionUpdate            = "session/update"
	MethodTerminalCreate           = "terminal/create"
	MethodTerminalOutput           = "terminal/output"
	MethodTerminalRelease          = "terminal/release"
	MethodTerminalWaitForExit      = "terminal/wait_for_exit"
	MethodTerminalKill             = "terminal/kill"
)

// MethodInfo describes one catalog entry
type MethodInfo struct {
	Name string
	// Notification is true for fire-and-forget methods
	Notification bool
	// Optional is true when the handling side may leave the method unimplemented
	Optional bool
	// EmptyResult is true when a nil handler result is sent as {} instead of null
	EmptyResult bool
}

// AgentMethods is the catalog of methods handled by the Agent
var AgentMethods = map[string]MethodInfo{
	MethodInitialize:     {Name: MethodInitialize},
	MethodAuthenticate:   {Name: MethodAuthenticate, EmptyResult: true},
	MethodSessionNew:     {Name: MethodSessionNew},
	MethodSessionLoad:    {Name: MethodSessionLoad, Optional: true, EmptyResult: true},
	MethodSessionSetMode: {Name: MethodSessionSetMode, Optional: true, EmptyResult: true},
	MethodSessionPrompt:  {Name: MethodSessionPrompt},
	MethodSessionCancel:  {Name: MethodSessionCancel, Notification: true},
}

// ClientMethods is the catalog of methods handled by the Client
var ClientMethods = map[string]MethodInfo{
	MethodFSReadTextFile:           {Name: MethodFSReadTextFile},
	MethodFSWriteTextFile:          {Name: MethodFSWriteTextFile, EmptyResult: true},
	MethodSessionRequestPermission: {Name: MethodSessionRequestPermission},
	MethodSessionUpdate:            {Name: MethodSessionUpdate, Notification: true},
	MethodTerminalCreate:           {Name: MethodTerminalCreate, Optional: true},
	MethodTerminalOutput:           {Name: MethodTerminalOutput, Optional: true},
	MethodTerminalRelease:          {Name: MethodTerminalRelease, Optional: true, EmptyResult: true},
	MethodTerminalWaitForExit:      {Name: MethodTerminalWaitForExit, Optional: true},
	MethodTerminalKill:             {Name: MethodTerminalKill, Optional: true, EmptyResult: true},
}

// IsExtension reports whether method carries the extension prefix
func IsExtension(method string) bool {
	return strings.HasPrefix(method, ExtensionPrefix)
}

// StripExtension removes the extension prefix, returning the name verbatim otherwise
func StripExtension(method string) string {
	return strings.TrimPrefix(method, ExtensionPrefix)
}

// ExtensionMethod adds the extension prefix to an application-defined name
func ExtensionMethod(name string) string {
	return ExtensionPrefix + name
}

// EmptyObject is the {} result sent by methods whose response carries no fields
type EmptyObject struct {
	Meta Meta `json:"_meta,omitempty"`
}

// Validate implements Validatable
func (e *EmptyObject) Validate(v *Validator) {}

// Meta is the free-form extension object every record may carry
type Meta map[string]interface{}

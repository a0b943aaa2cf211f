package protocol

// FileSystemCapability advertises the fs/* methods a client implements
type FileSystemCapability struct {
	Meta          Meta `json:"_meta,omitempty"`
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

// ClientCapabilities is sent by the client during initialize
type ClientCapabilities struct {
	Meta     Meta                  `json:"_meta,omitempty"`
	FS       *FileSystemCapability `json:"fs,omitempty"`
	Terminal bool                  `json:"terminal,omitempty"`
}

// CanReadFiles reports whether fs/read_text_file was advertised
func (c *ClientCapabilities) CanReadFiles() bool {
	return c != nil && c.FS != nil && c.FS.ReadTextFile
}

// CanWriteFiles reports whether fs/write_text_file was advertised
func (c *ClientCapabilities) CanWriteFiles() bool {
	return c != nil && c.FS != nil && c.FS.WriteTextFile
}

// CanRunTerminals reports whether the terminal/* methods were advertised
func (c *ClientCapabilities) CanRunTerminals() bool {
	return c != nil && c.Terminal
}

// InitializeRequest negotiates the protocol version and capabilities
type InitializeRequest struct {
	Meta               Meta                `json:"_meta,omitempty"`
	ProtocolVersion    int                 `json:"protocolVersion"`
	ClientCapabilities *ClientCapabilities `json:"clientCapabilities,omitempty"`
}

// Validate implements Validatable
func (r *InitializeRequest) Validate(v *Validator) {
	if r.ProtocolVersion < 0 || r.ProtocolVersion > 65535 {
		v.Field("protocolVersion").Fail("uint16", "out of range")
	}
}

// McpCapabilities lists the MCP transports an agent can connect to besides stdio
type McpCapabilities struct {
	Meta Meta `json:"_meta,omitempty"`
	HTTP bool `json:"http"`
	SSE  bool `json:"sse"`
}

// PromptCapabilities lists the content types an agent accepts in prompts
// besides text and resource links
type PromptCapabilities struct {
	Meta            Meta `json:"_meta,omitempty"`
	Audio           bool `json:"audio"`
	EmbeddedContext bool `json:"embeddedContext"`
	Image           bool `json:"image"`
}

// AgentCapabilities is returned by the agent during initialize
type AgentCapabilities struct {
	Meta               Meta                `json:"_meta,omitempty"`
	LoadSession        bool                `json:"loadSession"`
	McpCapabilities    *McpCapabilities    `json:"mcpCapabilities,omitempty"`
	PromptCapabilities *PromptCapabilities `json:"promptCapabilities,omitempty"`
}

// AuthMethod is a way for the client to authenticate
type AuthMethod struct {
	Meta        Meta    `json:"_meta,omitempty"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// InitializeResponse completes version negotiation
type InitializeResponse struct {
	Meta              Meta               `json:"_meta,omitempty"`
	ProtocolVersion   int                `json:"protocolVersion"`
	AgentCapabilities *AgentCapabilities `json:"agentCapabilities,omitempty"`
	AuthMethods       []AuthMethod       `json:"authMethods,omitempty"`
}

// Validate implements Validatable
func (r *InitializeResponse) Validate(v *Validator) {
	if r.ProtocolVersion < 0 || r.ProtocolVersion > 65535 {
		v.Field("protocolVersion").Fail("uint16", "out of range")
	}
	for i, m := range r.AuthMethods {
		item := v.Field("authMethods").Index(i)
		item.RequireString("id", m.ID)
		item.RequireString("name", m.Name)
	}
}

// AuthenticateRequest selects one of the advertised auth methods
type AuthenticateRequest struct {
	Meta     Meta   `json:"_meta,omitempty"`
	MethodID string `json:"methodId"`
}

// Validate implements Validatable
func (r *AuthenticateRequest) Validate(v *Validator) {
	v.RequireString("methodId", r.MethodID)
}

// AuthenticateResponse is empty
type AuthenticateResponse struct {
	Meta Meta `json:"_meta,omitempty"`
}

// Validate implements Validatable
func (r *AuthenticateResponse) Validate(v *Validator) {}

package protocol

import (
	"encoding/json"
	"errors"
)

// MCP server transport discriminators. Stdio servers carry no tag.
const (
	McpServerTypeHTTP = "http"
	McpServerTypeSSE  = "sse"

	// McpServerTypeStdio is accepted on input but never written
	McpServerTypeStdio = "stdio"
)

// EnvVariable is an environment variable passed to a spawned process
type EnvVariable struct {
	Meta  Meta   `json:"_meta,omitempty"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HTTPHeader is a header sent to an HTTP based MCP server
type HTTPHeader struct {
	Meta  Meta   `json:"_meta,omitempty"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// McpServerHTTP connects to an MCP server over streamable HTTP or SSE
type McpServerHTTP struct {
	Name    string       `json:"name"`
	URL     string       `json:"url"`
	Headers []HTTPHeader `json:"headers"`
}

// McpServerStdio launches an MCP server as a subprocess
type McpServerStdio struct {
	Name    string        `json:"name"`
	Command string        `json:"command"`
	Args    []string      `json:"args"`
	Env     []EnvVariable `json:"env"`
}

// McpServer describes an MCP server the agent should connect to
type McpServer struct {
	HTTP  *McpServerHTTP
	SSE   *McpServerHTTP
	Stdio *McpServerStdio

	state union
}

// StdioServer returns a stdio MCP server descriptor
func StdioServer(name, command string, args ...string) McpServer {
	if args == nil {
		args = []string{}
	}
	return McpServer{Stdio: &McpServerStdio{Name: name, Command: command, Args: args, Env: []EnvVariable{}}}
}

// HTTPServer returns an HTTP MCP server descriptor
func HTTPServer(name, url string) McpServer {
	return McpServer{HTTP: &McpServerHTTP{Name: name, URL: url, Headers: []HTTPHeader{}}}
}

// MarshalJSON implements json.Marshaler
func (s McpServer) MarshalJSON() ([]byte, error) {
	switch {
	case s.HTTP != nil:
		return marshalTagged("type", McpServerTypeHTTP, s.HTTP)
	case s.SSE != nil:
		return marshalTagged("type", McpServerTypeSSE, s.SSE)
	case s.Stdio != nil:
		return json.Marshal(s.Stdio)
	default:
		return nil, errors.New("mcp server has no variant set")
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (s *McpServer) UnmarshalJSON(data []byte) error {
	*s = McpServer{}
	if _, ok := s.state.decodeTag(data, "type"); !ok {
		return nil
	}
	switch s.state.tag {
	case McpServerTypeHTTP:
		s.HTTP = &McpServerHTTP{}
		s.state.decodeVariant(data, s.HTTP)
	case McpServerTypeSSE:
		s.SSE = &McpServerHTTP{}
		s.state.decodeVariant(data, s.SSE)
	case "", McpServerTypeStdio:
		s.Stdio = &McpServerStdio{}
		s.state.decodeVariant(data, s.Stdio)
	}
	s.state.settle(s.HTTP != nil || s.SSE != nil || s.Stdio != nil)
	return nil
}

// Validate implements Validatable
func (s *McpServer) Validate(v *Validator) {
	if s.state.err != "" {
		v.Fail("valid variant", s.state.err)
		return
	}
	switch {
	case s.HTTP != nil:
		validateHTTPServer(v, s.HTTP)
	case s.SSE != nil:
		validateHTTPServer(v, s.SSE)
	case s.Stdio != nil:
		v.RequireString("name", s.Stdio.Name)
		v.RequireString("command", s.Stdio.Command)
		v.RequireArray("args", s.Stdio.Args != nil)
		v.RequireArray("env", s.Stdio.Env != nil)
		for i, env := range s.Stdio.Env {
			v.Field("env").Index(i).RequireString("name", env.Name)
		}
	default:
		v.Field("type").Fail(oneOf([]string{McpServerTypeHTTP, McpServerTypeSSE, McpServerTypeStdio}), "unknown")
	}
}

func validateHTTPServer(v *Validator, s *McpServerHTTP) {
	v.RequireString("name", s.Name)
	v.RequireString("url", s.URL)
	v.RequireArray("headers", s.Headers != nil)
	for i, h := range s.Headers {
		v.Field("headers").Index(i).RequireString("name", h.Name)
	}
}

func validateMcpServers(v *Validator, servers []McpServer) {
	v.RequireArray("mcpServers", servers != nil)
	for i := range servers {
		servers[i].Validate(v.Field("mcpServers").Index(i))
	}
}

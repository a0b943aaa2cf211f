package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/config"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

var (
	errRelativePath     = errors.New("Absolute paths are required by ACP.")
	errNoWorkspace      = errors.New("Open a workspace folder to enable file operations.")
	errOutsideWorkspace = errors.New("Access outside of workspace is not allowed.")
)

// host answers agent requests for a single workspace directory
type host struct {
	workspace string
	policy    string
	logger    logging.Logger

	mu  sync.Mutex
	out io.Writer
}

func newHost(workspace, policy string, out io.Writer, logger logging.Logger) *host {
	return &host{
		workspace: workspace,
		policy:    policy,
		out:       out,
		logger:    logger,
	}
}

// RequestPermission answers according to the configured policy instead of
// asking interactively
func (h *host) RequestPermission(ctx context.Context, params *protocol.RequestPermissionRequest) (*protocol.RequestPermissionResponse, error) {
	outcome := choosePermission(h.policy, params)
	if outcome.Cancelled() {
		h.logger.Info("Permission cancelled", logging.SessionID(params.SessionID),
			logging.String("tool_call_id", params.ToolCall.ToolCallID))
	} else {
		h.logger.Info("Permission answered", logging.SessionID(params.SessionID),
			logging.String("tool_call_id", params.ToolCall.ToolCallID),
			logging.String("option_id", outcome.Selected.OptionID))
	}
	return &protocol.RequestPermissionResponse{Outcome: outcome}, nil
}

func choosePermission(policy string, params *protocol.RequestPermissionRequest) protocol.RequestPermissionOutcome {
	var kinds []protocol.PermissionOptionKind
	switch policy {
	case config.PermissionAllow:
		kinds = []protocol.PermissionOptionKind{protocol.PermissionAllowOnce, protocol.PermissionAllowAlways}
	case config.PermissionReject:
		kinds = []protocol.PermissionOptionKind{protocol.PermissionRejectOnce, protocol.PermissionRejectAlways}
	}
	for _, kind := range kinds {
		if opt, ok := params.FindOption(kind); ok {
			return protocol.SelectOption(opt.OptionID)
		}
	}
	return protocol.CancelledOutcome()
}

// SessionUpdate prints agent output and logs everything else
func (h *host) SessionUpdate(ctx context.Context, params *protocol.SessionNotification) error {
	u := params.Update
	switch {
	case u.AgentMessageChunk != nil:
		if t := u.AgentMessageChunk.Content.Text; t != nil {
			h.print(t.Text)
			return nil
		}
	case u.ToolCall != nil:
		h.logger.Info("Tool call",
			logging.SessionID(params.SessionID),
			logging.String("tool_call_id", u.ToolCall.ToolCallID),
			logging.String("title", u.ToolCall.Title),
		)
		return nil
	}
	h.logger.Debug("Session update",
		logging.SessionID(params.SessionID),
		logging.String("kind", u.Kind()),
	)
	return nil
}

func (h *host) print(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprint(h.out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(h.out)
	}
}

func (h *host) ReadTextFile(ctx context.Context, params *protocol.ReadTextFileRequest) (*protocol.ReadTextFileResponse, error) {
	path, err := h.resolve(params.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", params.Path, err)
	}
	return &protocol.ReadTextFileResponse{Content: sliceLines(string(data), params.Line, params.Limit)}, nil
}

func (h *host) WriteTextFile(ctx context.Context, params *protocol.WriteTextFileRequest) (*protocol.WriteTextFileResponse, error) {
	path, err := h.resolve(params.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", params.Path, err)
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", params.Path, err)
	}
	h.logger.Info("File written", logging.SessionID(params.SessionID), logging.String("path", path))
	return nil, nil
}

// resolve checks that p is absolute and inside the workspace
func (h *host) resolve(p string) (string, error) {
	if !filepath.IsAbs(p) {
		return "", errRelativePath
	}
	if h.workspace == "" {
		return "", errNoWorkspace
	}
	root := filepath.Clean(h.workspace)
	path := filepath.Clean(p)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideWorkspace
	}
	return path, nil
}

// sliceLines returns limit lines starting at the 1-based line
func sliceLines(content string, line, limit *int) string {
	if line == nil && limit == nil {
		return content
	}
	lines := strings.SplitAfter(content, "\n")
	start := 0
	if line != nil && *line > 1 {
		start = *line - 1
	}
	if start >= len(lines) {
		return ""
	}
	end := len(lines)
	// compared as a remainder so a huge limit cannot overflow
	if limit != nil && *limit >= 0 && *limit < end-start {
		end = start + *limit
	}
	return strings.Join(lines[start:end], "")
}

package transport

import (
	"context"
	"fmt"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

// Call sends a request on conn and decodes the validated result into a new R.
// A malformed result is reported as *protocol.ResultError; a peer error
// keeps its *errors.RequestError in the chain.
func Call[R any, RT interface {
	*R
	protocol.Validatable
}](ctx context.Context, conn *Connection, method string, params interface{}) (RT, error) {
	raw, err := conn.SendRequest(ctx, method, params)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}

	result := RT(new(R))
	if err := protocol.DecodeResult(method, raw, result); err != nil {
		return nil, fmt.Errorf("failed to parse %s result: %w", method, err)
	}
	return result, nil
}

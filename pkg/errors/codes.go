package errors

import (
	"sort"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

// Error codes defined by JSON-RPC 2.0 and ACP
const (
	CodeParseError     = int(protocol.ParseError)
	CodeInvalidRequest = int(protocol.InvalidRequest)
	CodeMethodNotFound = int(protocol.MethodNotFound)
	CodeInvalidParams  = int(protocol.InvalidParams)
	CodeInternalError  = int(protocol.InternalError)
	// CodeAuthRequired is returned by agents that need authenticate first
	CodeAuthRequired = int(protocol.AuthRequired)
)

type codeInfo struct {
	name     string
	message  string
	category Category
}

var knownCodes = map[int]codeInfo{
	CodeParseError:     {"ParseError", "Parse error", CategoryTransport},
	CodeInvalidRequest: {"InvalidRequest", "Invalid request", CategoryValidation},
	CodeMethodNotFound: {"MethodNotFound", "Method not found", CategoryRouting},
	CodeInvalidParams:  {"InvalidParams", "Invalid params", CategoryValidation},
	CodeInternalError:  {"InternalError", "Internal error", CategoryApplication},
	CodeAuthRequired:   {"AuthRequired", "Authentication required", CategoryAuth},
}

// KnownCodes lists the codes this package names, in ascending order
func KnownCodes() []int {
	codes := make([]int, 0, len(knownCodes))
	for code := range knownCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// CodeName returns a metric-friendly name for code. Codes chosen by the
// peer are all reported as "PeerError".
func CodeName(code int) string {
	if info, ok := knownCodes[code]; ok {
		return info.name
	}
	return "PeerError"
}

// IsReserved reports whether code lies in the range JSON-RPC reserves for
// itself, -32768 to -32000
func IsReserved(code int) bool {
	return code >= -32768 && code <= -32000
}

func categoryOf(code int) Category {
	if info, ok := knownCodes[code]; ok {
		return info.category
	}
	return CategoryPeer
}

// known builds the error for a code from knownCodes with its usual message
func known(code int, data interface{}) *RequestError {
	return NewError(code, knownCodes[code].message, data)
}

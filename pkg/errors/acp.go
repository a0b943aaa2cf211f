package errors

// ParseError is sent when an inbound line is not valid JSON-RPC
func ParseError(data interface{}) *RequestError { return known(CodeParseError, data) }

// InvalidRequest is sent when a message is not a valid request object
func InvalidRequest(data interface{}) *RequestError { return known(CodeInvalidRequest, data) }

// MethodNotFound is sent for methods the receiving side does not implement
func MethodNotFound(method string) *RequestError {
	return known(CodeMethodNotFound, map[string]string{"method": method})
}

// InvalidParams is sent when params fail validation
func InvalidParams(data interface{}) *RequestError { return known(CodeInvalidParams, data) }

// InternalError is sent when a handler fails
func InternalError(data interface{}) *RequestError { return known(CodeInternalError, data) }

// AuthRequired tells the client to call authenticate before retrying
func AuthRequired(data interface{}) *RequestError { return known(CodeAuthRequired, data) }

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Issue describes a single schema violation
type Issue struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Got      string `json:"got,omitempty"`
}

// ValidationError is returned when inbound params do not match the shape a
// method declares. It lists every violation found.
type ValidationError struct {
	Method string  `json:"method,omitempty"`
	Issues []Issue `json:"issues"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return formatIssues("invalid params", e.Method, e.Issues)
}

func formatIssues(prefix, method string, issues []Issue) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		path := issue.Path
		if path == "" {
			path = "value"
		}
		if issue.Got != "" {
			parts = append(parts, fmt.Sprintf("%s: expected %s, got %s", path, issue.Expected, issue.Got))
		} else {
			parts = append(parts, fmt.Sprintf("%s: expected %s", path, issue.Expected))
		}
	}
	if method != "" {
		prefix = fmt.Sprintf("%s for %s", prefix, method)
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Validatable is implemented by every params and result record
type Validatable interface {
	Validate(v *Validator)
}

// Validator collects issues while walking a value. Child validators
// created with Field and Index share the parent's issue list. A validator
// for a decoded value also holds the JSON it was decoded from, which is
// how a string that was sent empty is told apart from one never sent.
type Validator struct {
	path   string
	doc    json.RawMessage
	issues *[]Issue
}

// NewValidator returns a validator for a value built in code
func NewValidator() *Validator {
	return &Validator{issues: &[]Issue{}}
}

func validatorFor(doc json.RawMessage) *Validator {
	return &Validator{doc: doc, issues: &[]Issue{}}
}

// Field returns a validator for a named member
func (v *Validator) Field(name string) *Validator {
	if name == "" {
		return v
	}
	path := name
	if v.path != "" {
		path = v.path + "." + name
	}
	return &Validator{path: path, doc: member(v.doc, name), issues: v.issues}
}

// Index returns a validator for an array element
func (v *Validator) Index(i int) *Validator {
	return &Validator{path: v.path + "[" + strconv.Itoa(i) + "]", doc: element(v.doc, i), issues: v.issues}
}

// Fail records an issue at the validator's own path
func (v *Validator) Fail(expected, got string) {
	*v.issues = append(*v.issues, Issue{Path: v.path, Expected: expected, Got: got})
}

// RequireString records an issue when a required string was absent or
// null in the decoded JSON. The empty string is a value like any other.
// Values built in code always marshal the field, so they pass.
func (v *Validator) RequireString(name, value string) {
	if value != "" || v.doc == nil {
		return
	}
	if raw := member(v.doc, name); raw != nil && !isNull(raw) {
		return
	}
	v.Field(name).Fail("string", "missing")
}

// RequireArray records an issue when a required array is absent or null
func (v *Validator) RequireArray(name string, present bool) {
	if !present {
		v.Field(name).Fail("array", "missing")
	}
}

// Require records an issue when a required object is absent or null
func (v *Validator) Require(name string, present bool) {
	if !present {
		v.Field(name).Fail("object", "missing")
	}
}

// Enum records an issue when value is not one of allowed. An empty value is
// accepted only when the field is optional.
func (v *Validator) Enum(name, value string, optional bool, allowed ...string) {
	if value == "" {
		if !optional {
			v.Field(name).Fail(oneOf(allowed), "missing")
		}
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.Field(name).Fail(oneOf(allowed), strconv.Quote(value))
}

// Valid reports whether no issues were recorded
func (v *Validator) Valid() bool {
	return len(*v.issues) == 0
}

// Issues returns the collected issues
func (v *Validator) Issues() []Issue {
	return *v.issues
}

func oneOf(allowed []string) string {
	quoted := make([]string, len(allowed))
	for i, a := range allowed {
		quoted[i] = strconv.Quote(a)
	}
	return "one of " + strings.Join(quoted, ", ")
}

// DecodeParams parses raw params into dst and validates the result. Any
// failure is reported as a *ValidationError.
func DecodeParams(method string, raw json.RawMessage, dst Validatable) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &ValidationError{
			Method: method,
			Issues: []Issue{{Expected: "object", Got: jsonKindOf(trimmed)}},
		}
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		return &ValidationError{Method: method, Issues: []Issue{issueFromDecodeError(err)}}
	}

	v := validatorFor(trimmed)
	dst.Validate(v)
	if !v.Valid() {
		return &ValidationError{Method: method, Issues: v.Issues()}
	}
	return nil
}

// Check validates an already-typed value, e.g. a result before it is sent
func Check(method string, value Validatable) error {
	v := NewValidator()
	value.Validate(v)
	if !v.Valid() {
		return &ValidationError{Method: method, Issues: v.Issues()}
	}
	return nil
}

// member returns the raw value of key in a JSON object, or nil when doc is
// not an object or has no such key
func member(doc json.RawMessage, key string) json.RawMessage {
	if len(doc) == 0 {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil
	}
	return fields[key]
}

func element(doc json.RawMessage, i int) json.RawMessage {
	if len(doc) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(doc, &items); err != nil || i >= len(items) {
		return nil
	}
	return items[i]
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), nullJSON)
}

func issueFromDecodeError(err error) Issue {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return Issue{
			Path:     typeErr.Field,
			Expected: jsonKindOfType(typeErr.Type),
			Got:      typeErr.Value,
		}
	}
	return Issue{Expected: "valid JSON", Got: err.Error()}
}

func jsonKindOf(raw []byte) string {
	if len(raw) == 0 {
		return "missing"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func jsonKindOfType(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonKindOfType(t.Elem())
	default:
		return t.String()
	}
}

// union holds the decode state shared by the tagged variant types. Variant
// types never fail json.Unmarshal; problems are reported by Validate so that
// they carry the full field path.
type union struct {
	tag string
	err string
}

// decodeTag reads the discriminator of a tagged object
func (u *union) decodeTag(data []byte, key string) (map[string]json.RawMessage, bool) {
	*u = union{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		u.err = "expected object, got " + jsonKindOf(bytes.TrimSpace(data))
		return nil, false
	}
	raw, ok := fields[key]
	if !ok {
		return fields, true
	}
	if err := json.Unmarshal(raw, &u.tag); err != nil {
		u.err = fmt.Sprintf("%s must be a string", key)
		return fields, false
	}
	return fields, true
}

// decodeVariant fills dst from data and keeps the error for Validate
func (u *union) decodeVariant(data []byte, dst interface{}) {
	if err := json.Unmarshal(data, dst); err != nil {
		issue := issueFromDecodeError(err)
		u.err = fmt.Sprintf("%s: expected %s, got %s", issue.Path, issue.Expected, issue.Got)
	}
}

// report records decode problems and returns false when validation of the
// variant itself should be skipped
func (u *union) report(v *Validator, key string, known ...string) bool {
	if u.err != "" {
		v.Fail("valid variant", u.err)
		return false
	}
	if u.tag == "" {
		v.Field(key).Fail(oneOf(known), "missing")
		return false
	}
	for _, k := range known {
		if u.tag == k {
			return true
		}
	}
	v.Field(key).Fail(oneOf(known), strconv.Quote(u.tag))
	return false
}

// settle clears the decode state once a known variant decoded cleanly, so
// decoded values compare equal to ones built in code
func (u *union) settle(matched bool) {
	if matched && u.err == "" {
		*u = union{}
	}
}

// resolved returns the state to validate, filling in the tag of values that
// were built in code rather than decoded
func (u union) resolved(tag string) *union {
	if u.tag == "" && u.err == "" {
		u.tag = tag
	}
	return &u
}

// marshalTagged encodes value as an object with the discriminator first
func marshalTagged(key, tag string, value interface{}) ([]byte, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	head := fmt.Sprintf("{%q:%q", key, tag)
	if bytes.Equal(body, []byte("{}")) || bytes.Equal(body, []byte("null")) {
		return []byte(head + "}"), nil
	}
	return append([]byte(head+","), body[1:]...), nil
}

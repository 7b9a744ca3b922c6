package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the kind of a failure.
type ErrorType string

const (
	// Image errors
	ErrorTypeDecode      ErrorType = "decode"
	ErrorTypeInvalidSpec ErrorType = "invalid_spec"
	ErrorTypeEncode      ErrorType = "encode"

	// Catalog and asset errors
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeValidation ErrorType = "validation"

	// System errors
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Sentinels usable with errors.Is; matching is by kind only.
var (
	ErrDecode      = &AppError{Type: ErrorTypeDecode}
	ErrInvalidSpec = &AppError{Type: ErrorTypeInvalidSpec}
	ErrEncode      = &AppError{Type: ErrorTypeEncode}
	ErrNotFound    = &AppError{Type: ErrorTypeNotFound}
	ErrValidation  = &AppError{Type: ErrorTypeValidation}
	ErrIO          = &AppError{Type: ErrorTypeIO}
	ErrInternal    = &AppError{Type: ErrorTypeInternal}
)

// AppError represents a structured error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
	Stack      []string       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	switch {
	case e.Message == "" && e.InnerError != nil:
		return e.InnerError.Error()
	case e.Message == "":
		return string(e.Type)
	case e.InnerError != nil:
		return e.Message + ": " + e.InnerError.Error()
	}
	return e.Message
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// Is reports whether target is an *AppError of the same kind.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) {
		return e.Type == t.Type
	}
	return false
}

// WithMessage replaces the message
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// FromError converts any error to an AppError, keeping the kind of the
// first AppError found in the chain.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		InnerError: err,
	}
}

// Wrap wraps an error keeping its kind.
func Wrap(err error, message string) *AppError {
	kind := ErrorTypeUnknown
	var appErr *AppError
	if errors.As(err, &appErr) {
		kind = appErr.Type
	}
	return WrapWithType(err, kind, message)
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// TypeOf returns the kind of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

func NewDecode(err error) *AppError {
	return WrapWithType(err, ErrorTypeDecode, "decode image")
}

func NewInvalidSpec(field string, value any, reason string) *AppError {
	return New(ErrorTypeInvalidSpec, fmt.Sprintf("invalid %s %v: %s", field, value, reason)).
		WithDetail("field", field).
		WithDetail("value", value)
}

func NewEncode(format string, err error) *AppError {
	return WrapWithType(err, ErrorTypeEncode, "encode "+format).
		WithDetail("format", format)
}

func NewNotFound(resource string, id any) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s %v not found", resource, id)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

func NewValidation(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewIO(op, path string, err error) *AppError {
	return WrapWithType(err, ErrorTypeIO, op+" "+path).
		WithDetail("path", path)
}

func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message)
}

// ErrorFormatter formats errors for display
type ErrorFormatter struct {
	showStack bool
	showInner bool
}

// NewErrorFormatter creates a new error formatter
func NewErrorFormatter(showStack bool, showInner bool) *ErrorFormatter {
	return &ErrorFormatter{
		showStack: showStack,
		showInner: showInner,
	}
}

// Format formats an error as a single line.
func (f *ErrorFormatter) Format(err error) string {
	if err == nil {
		return ""
	}

	appErr := FromError(err)

	msg := appErr.Message
	if msg == "" {
		msg = appErr.Error()
	}
	parts := []string{fmt.Sprintf("[%s] %s", appErr.Type, msg)}

	if len(appErr.Details) > 0 {
		keys := make([]string, 0, len(appErr.Details))
		for k := range appErr.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, appErr.Details[k]))
		}
	}

	if f.showInner && appErr.InnerError != nil {
		parts = append(parts, "caused_by: "+appErr.InnerError.Error())
	}

	if f.showStack && len(appErr.Stack) > 0 {
		parts = append(parts, "stack:")
		for _, s := range appErr.Stack {
			parts = append(parts, "  "+s)
		}
	}

	return strings.Join(parts, " | ")
}

// ErrorRecoverWithHandler recovers from panics and hands them over as
// internal errors with a stack.
func ErrorRecoverWithHandler(handler func(*AppError)) {
	if r := recover(); r != nil {
		var appErr *AppError
		switch v := r.(type) {
		case error:
			appErr = WrapWithType(v, ErrorTypeInternal, "panic recovered")
		case string:
			appErr = New(ErrorTypeInternal, v)
		default:
			appErr = New(ErrorTypeInternal, fmt.Sprintf("%v", v))
		}
		appErr = appErr.WithStack()
		handler(appErr)
	}
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < 16; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}

// ErrorChain collects independent failures, e.g. one per batch item.
type ErrorChain struct {
	errors []*AppError
}

// NewErrorChain creates a new error chain
func NewErrorChain() *ErrorChain {
	return &ErrorChain{
		errors: make([]*AppError, 0),
	}
}

// Add adds an error to the chain; nil is ignored.
func (c *ErrorChain) Add(err error) *ErrorChain {
	if err != nil {
		c.errors = append(c.errors, FromError(err))
	}
	return c
}

// HasErrors checks if the chain has errors
func (c *ErrorChain) HasErrors() bool {
	return len(c.errors) > 0
}

// Error returns the combined error message
func (c *ErrorChain) Error() string {
	if !c.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range c.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, " | ")
}

// Errors returns all errors in the chain
func (c *ErrorChain) Errors() []*AppError {
	return c.errors
}

// CountByType groups the chain by kind.
func (c *ErrorChain) CountByType() map[ErrorType]int {
	counts := make(map[ErrorType]int)
	for _, err := range c.errors {
		counts[err.Type]++
	}
	return counts
}

// HasType checks if the chain has an error of the specified type
func (c *ErrorChain) HasType(errType ErrorType) bool {
	for _, err := range c.errors {
		if err.Type == errType {
			return true
		}
	}
	return false
}

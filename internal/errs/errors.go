package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

type ErrorType int

const (
	// ErrProvider covers network, auth and malformed-response failures of a translation provider.
	ErrProvider ErrorType = iota
	// ErrStorage covers persistence I/O failures. Retrying the operation is safe.
	ErrStorage
	// ErrConfig covers missing credentials, unknown providers and invalid settings.
	ErrConfig
	ErrValidation
	ErrUnknown
)

func (t ErrorType) String() string {
	switch t {
	case ErrProvider:
		return "Provider"
	case ErrStorage:
		return "Storage"
	case ErrConfig:
		return "Configuration"
	case ErrValidation:
		return "Validation"
	default:
		return "Unknown"
	}
}

type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func New(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(errorType ErrorType, format string, args ...any) *Error {
	return New(errorType, fmt.Sprintf(format, args...))
}

func Wrap(err error, errorType ErrorType, message string) *Error {
	e := New(errorType, message)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Type, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// TypeOf returns the ErrorType of the first *Error in err's chain.
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrUnknown
}

func IsErrorType(err error, errorType ErrorType) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type == errorType
	}
	return false
}

// Advice is the user-facing hint shown next to an error notification.
func Advice(err error) string {
	switch TypeOf(err) {
	case ErrProvider:
		return "Check network connectivity and the provider API key, then request the translation again"
	case ErrStorage:
		return "Check that the data directory is writable; history stays in memory and can be saved again"
	case ErrConfig:
		return "Check the provider name and credentials in settings or environment variables"
	case ErrValidation:
		return "Check the request parameters"
	default:
		return "Review the detailed error message"
	}
}

// Report logs err with its advice. It returns false for untyped errors.
func Report(err error) bool {
	var typed *Error
	if !errors.As(err, &typed) {
		log.Error("Unknown error: %v", err)
		return false
	}
	log.Error("%v (advice: %s)", err, Advice(err))
	return true
}

// SafeExecute runs fn and converts a panic into an ErrUnknown error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Newf(ErrUnknown, "runtime error: %v", r)
		}
	}()

	return fn()
}

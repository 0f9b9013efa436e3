package errx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// NotFoundMessage is returned when a stored record does not exist.
	NotFoundMessage = "record not found"
)

// Kind classifies failures across a planning session.
type Kind string

const (
	KindInternal   Kind = "internal"
	KindConfig     Kind = "config"
	KindValidation Kind = "validation"
	KindTool       Kind = "tool"
	KindParse      Kind = "parse"
	KindExhausted  Kind = "exhausted"
	KindCancelled  Kind = "cancelled"
	KindFatal      Kind = "fatal"
	KindStorage    Kind = "storage"
	KindNotFound   Kind = "not_found"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Kind    Kind
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Kind:    KindInternal,
		Status:  status,
		Message: message,
	}
}

func newKind(kind Kind, status int, format string, args ...any) *AppError {
	return &AppError{
		Kind:    kind,
		Status:  status,
		Message: fmt.Sprintf(format, args...),
	}
}

// Config reports a missing or unusable credential or setting.
func Config(format string, args ...any) *AppError {
	return newKind(KindConfig, http.StatusInternalServerError, format, args...)
}

// Validation reports a rejected request.
func Validation(format string, args ...any) *AppError {
	return newKind(KindValidation, http.StatusBadRequest, format, args...)
}

// Tool reports a failed tool execution. The message is what the model sees.
func Tool(format string, args ...any) *AppError {
	return newKind(KindTool, http.StatusBadGateway, format, args...)
}

// WrapTool attaches a cause to a tool failure while keeping the message clean.
func WrapTool(err error, format string, args ...any) *AppError {
	e := Tool(format, args...)
	e.Err = err
	return e
}

// Parse reports an itinerary payload that could not be accepted.
func Parse(format string, args ...any) *AppError {
	return newKind(KindParse, http.StatusUnprocessableEntity, format, args...)
}

// NotFound reports a missing stored record.
func NotFound(format string, args ...any) *AppError {
	return newKind(KindNotFound, http.StatusNotFound, format, args...)
}

// WrapRedis maps Redis errors to AppError with appropriate status codes.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return &AppError{Err: err, Kind: KindNotFound, Status: http.StatusNotFound, Message: NotFoundMessage}
	}
	return &AppError{Err: err, Kind: KindStorage, Status: http.StatusBadGateway, Message: RedisErrorMessage}
}

// KindOf returns the kind of the outermost AppError in the chain.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// Message returns the safe message of the outermost AppError, falling back to err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

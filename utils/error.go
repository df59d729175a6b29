package utils

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	KindInvalidArgument  ErrorKind = "InvalidArgument"
	KindNotFound         ErrorKind = "NotFound"
	KindInvalidOperation ErrorKind = "InvalidOperation"
	KindUnexpected       ErrorKind = "Unexpected"
)

// AppError is a classified business error. Message is safe to return to clients.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func InvalidArgument(format string, args ...any) error {
	return &AppError{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func InvalidOperation(format string, args ...any) error {
	return &AppError{Kind: KindInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Err: ErrorRecordNotFound}
}

// Unexpected wraps infrastructure failures (db, cache, lock).
func Unexpected(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return &AppError{Kind: KindUnexpected, Message: err.Error(), Err: err}
}

// KindOf classifies any error; unclassified errors are Unexpected.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return KindNotFound
	}
	return KindUnexpected
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps the error kind to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument, KindInvalidOperation, KindUnexpected:
		return http.StatusBadRequest
	}
	return http.StatusOK
}

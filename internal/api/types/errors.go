package types

import (
	"errors"

	appErr "github.com/aether-os/engine/pkg/errors"
)

// FromAppError converts err into the wire error. Wrapped causes are kept
// out of the message and reported as details only for invalid input.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if !errors.As(err, &e) {
		return &APIError{Code: string(appErr.CodeUnknown), Message: err.Error()}
	}
	out := &APIError{Code: string(e.Code), Message: e.Message}
	if e.Code == appErr.CodeInvalid && e.Err != nil {
		out.Details = e.Err.Error()
	}
	return out
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aether-os/engine/internal/api/middleware"
	"github.com/aether-os/engine/internal/api/types"
	appErr "github.com/aether-os/engine/pkg/errors"
	"github.com/aether-os/engine/pkg/logger"
)

// maxBody bounds request bodies; pushed file sets are the largest.
const maxBody = 16 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.APIResponse{Success: true, Data: data})
}

// writeError answers with the status implied by err's code. Unexpected
// errors are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := appErr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return appErr.New(appErr.CodeInvalid, "request body is empty")
		}
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid json")
	}
	if err := validate.Struct(dst); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "validation failed")
	}
	return nil
}

// uuidParam reads a uuid path parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid "+name)
	}
	return id, nil
}

// currentUser returns the authenticated user or an unauthorized error.
func currentUser(r *http.Request) (uuid.UUID, error) {
	id := middleware.GetUserID(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, appErr.New(appErr.CodeUnauthorized, "Unauthorized")
	}
	return id, nil
}

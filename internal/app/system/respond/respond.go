// internal/app/system/respond/respond.go
//
// Package respond writes JSON responses. Error is the single boundary where
// application errors become HTTP status codes and response bodies.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/teamhub/internal/app/system/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Body is the shape of every message-bearing response.
type Body struct {
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Message writes {message} with the given status.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Body{Message: msg})
}

// Error maps err to a status and writes {message, error?, errors?}.
// Internal errors are logged and never expose their cause.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	ae := apperr.As(err)
	status := ae.Status()

	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			zap.String("kind", ae.Kind.String()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(ae.Err),
		)
	}

	body := Body{Message: ae.Message, Errors: ae.Fields}
	if ae.Kind == apperr.KindPrecondition {
		body.Error = "precondition failed"
	}
	JSON(w, status, body)
}

// DecodeJSON reads a JSON body into dst. Unknown fields and trailing data
// are rejected as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is required", nil)
		}
		return apperr.Validation("Invalid request body", map[string]string{"body": err.Error()})
	}
	if dec.More() {
		return apperr.Validation("Invalid request body", map[string]string{"body": "unexpected trailing data"})
	}
	return nil
}

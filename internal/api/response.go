// Package api exposes the ledger service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/directory"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/ledger"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// MessageResponse acknowledges a request that returns no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.NoCapacity, apperr.InsufficientCapacity, apperr.LimitExceeded:
		return http.StatusConflict
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.Unsupported:
		return http.StatusUnsupportedMediaType
	}
	return http.StatusInternalServerError
}

// writeResult sends a mutator result, using the failure kind for the status.
func writeResult(w http.ResponseWriter, r ledger.Result) {
	status := http.StatusOK
	if !r.Success {
		status = statusFor(r.Kind)
	}
	writeJSON(w, status, r)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSONError(w, statusFor(kind), string(kind), err.Error())
}

func writeDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, directory.ErrExists):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, directory.ErrInvalid):
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body: "+err.Error())
		return false
	}
	return true
}

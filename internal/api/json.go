package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/apperr"
)

const maxBody = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind,omitempty"`
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errResponse{Error: msg, Kind: apperr.KindInvalid})
}

// writeError maps an error kind to a status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case kind == apperr.KindNotFound:
		status = http.StatusNotFound
	case kind == apperr.KindDuplicateName,
		kind == apperr.KindAmbiguousByID,
		kind == apperr.KindAmbiguousByDate,
		kind == apperr.KindAmbiguousByAlternate,
		errors.Is(err, apperr.ErrAlreadyExists),
		errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case kind == apperr.KindInvalid:
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnsupported):
		status = http.StatusNotImplemented
	case kind == apperr.KindSearch:
		status = http.StatusBadGateway
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", msg))
	}
	writeJSON(w, status, errResponse{Error: msg, Kind: kind})
}

// decode reads a JSON body into v and validates it when v implements
// validation.Validatable.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	if vv, ok := v.(validation.Validatable); ok {
		if err := vv.Validate(); err != nil {
			badRequest(w, err.Error())
			return false
		}
	}
	return true
}

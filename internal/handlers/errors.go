package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"brainpulse/internal/catalog"
	"brainpulse/internal/service"
	"brainpulse/internal/validation"
)

var devMode atomic.Bool

// SetDevMode controls whether error responses carry the underlying cause
func SetDevMode(enabled bool) {
	devMode.Store(enabled)
}

type errorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := sonic.Marshal(v)
	if err != nil {
		log.WithError(err).Error("Failed to encode response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) == 0 {
		return errors.New("empty body")
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	return nil
}

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	resp := errorResponse{Error: userMsg}
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		entry := log.WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error(logMsg)
		} else {
			entry.Warn(logMsg)
		}
		if devMode.Load() {
			resp.Details = err.Error()
		}
	}

	writeJSON(w, status, resp)
}

// respondWithServiceError maps a service error onto its HTTP status
func respondWithServiceError(w http.ResponseWriter, logMsg string, err error) {
	var fieldErr *validation.FieldError
	var loadErr *catalog.CatalogLoadError

	switch {
	case errors.As(err, &fieldErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fieldErr.Message, Field: fieldErr.Field})
	case errors.Is(err, service.ErrDuplicate):
		respondWithError(w, http.StatusConflict, ErrDuplicateRecord, logMsg, err)
	case errors.Is(err, service.ErrInvalidReference):
		respondWithError(w, http.StatusBadRequest, ErrInvalidReferenceError, logMsg, err)
	case errors.As(err, &loadErr):
		log.WithField("tier", loadErr.Tier).WithError(loadErr.Err).Error("Word corpus unavailable")
		respondWithError(w, http.StatusInternalServerError, ErrContentUnavailable, logMsg, err)
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSessionExpired):
		respondWithError(w, http.StatusUnauthorized, err.Error(), "", nil)
	case errors.Is(err, service.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, err.Error(), "", nil)
	case errors.Is(err, service.ErrInvalidResetToken):
		respondWithError(w, http.StatusBadRequest, err.Error(), "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
	}
}

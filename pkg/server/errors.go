package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/engine"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/session"
)

// errBadRequest marks malformed payloads; handlers wrap it with the field
// that was missing or unparseable.
var errBadRequest = errors.New("bad request")

// statusFor is the single error-kind-to-status mapping for every
// transport. Handlers never pick status codes themselves.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handlerFunc is an error-returning handler; the adapter below owns the
// error-to-response rendering so no handler writes its own failure body.
type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		status := statusFor(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError {
			// Upstream and internal detail is for logs, not callers.
			s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
			msg = "dialogue engine unavailable"
			if status == http.StatusInternalServerError {
				msg = "internal error"
			}
		} else {
			s.logger.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
		}

		writeJSON(w, status, map[string]string{"error": msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Clark-Hu/cinestream/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondDomainError maps a classified service error onto the wire.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	kind := domain.KindOf(err)
	status, code := statusForKind(kind)
	if kind == domain.KindInternal {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.respondError(w, status, code, domain.MessageOf(err, fallback))
}

func statusForKind(kind domain.Kind) (int, string) {
	switch kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest, "BAD_REQUEST"
	case domain.KindUnauthorized:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case domain.KindAccountLocked:
		return http.StatusUnauthorized, "ACCOUNT_LOCKED"
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case domain.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	var fieldErr *fieldError
	switch {
	case errors.As(err, &fieldErr):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("Invalid value for field %s", fieldErr.field))
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Unable to parse request body")
	}
}

// Package server exposes reading sessions and agreement submission over
// HTTP/JSON, plus a gRPC admin and health service.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/session"
	"github.com/alfredjeanlab/agreements/internal/store"
	"github.com/alfredjeanlab/agreements/internal/submit"
)

// AgreementServer serves the agreement flow and the admin listing.
type AgreementServer struct {
	registry *session.Registry
	store    store.Store
	ipSalt   string
	now      func() time.Time
}

// NewAgreementServer returns a server backed by the given session registry
// and agreement store. ipSalt is mixed into stored origin hashes.
func NewAgreementServer(reg *session.Registry, s store.Store, ipSalt string) *AgreementServer {
	if ipSalt == "" {
		ipSalt = submit.DefaultSalt
	}
	return &AgreementServer{
		registry: reg,
		store:    s,
		ipSalt:   ipSalt,
		now:      time.Now,
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// errorStatus maps a submission or lookup error to an HTTP status.
func errorStatus(err error) int {
	var ie inputError
	var ve *model.ValidationError
	var se *submit.SubmissionError
	switch {
	case errors.As(err, &ie), errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, submit.ErrGateLocked), errors.Is(err, submit.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is the JSON body of every error response.
type errorResponse struct {
	Error  string             `json:"error"`
	Kind   string             `json:"kind,omitempty"`
	Fields []model.FieldError `json:"fields,omitempty"`
	Retry  bool               `json:"retry,omitempty"`
}

// writeSubmitError writes err with the status chosen by errorStatus.
// Backend failures keep the backend message; exhausted retries get a
// generic prompt to try again.
func writeSubmitError(w http.ResponseWriter, err error) {
	code := errorStatus(err)
	resp := errorResponse{Error: err.Error()}

	var ve *model.ValidationError
	var se *submit.SubmissionError
	switch {
	case errors.As(err, &ve):
		resp.Error = "validation failed"
		resp.Fields = ve.Errors
	case errors.As(err, &se):
		resp.Kind = string(se.Kind)
		resp.Retry = true
		if submit.IsExhausted(err) {
			resp.Error = "Something went wrong. Please try again."
		} else {
			resp.Error = "Failed to save agreement: " + se.Message
		}
	case code == http.StatusInternalServerError:
		slog.Error("unexpected submission error", "err", err)
		resp.Error = "internal server error"
	}
	writeJSON(w, code, resp)
}

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/alfredjeanlab/agreements/internal/model"
)

// maxBodyBytes bounds request bodies; scroll frames are the largest.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, the admin routes (agreement listing, lookup,
// stats, open sessions and session reset) require a valid Authorization: Bearer <token>
// header. The reading flow itself is public.
func (s *AgreementServer) NewHTTPHandler(authToken string) http.Handler {
	admin := func(h http.HandlerFunc) http.Handler { return AuthMiddleware(authToken, h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/sections", s.handleListSections)
	mux.HandleFunc("GET /v1/template", s.handleTemplate)
	mux.HandleFunc("POST /v1/sessions", s.handleOpenSession)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /v1/sessions/{id}/scroll", s.handleScroll)
	mux.HandleFunc("POST /v1/sessions/{id}/observe", s.handleObserve)
	mux.HandleFunc("POST /v1/sessions/{id}/agreement", s.handleSubmitAgreement)
	mux.Handle("GET /v1/sessions", admin(s.handleListSessions))
	mux.Handle("DELETE /v1/sessions/{id}", admin(s.handleResetSession))
	mux.Handle("GET /v1/agreements", admin(s.handleListAgreements))
	mux.Handle("GET /v1/agreements/{code}", admin(s.handleGetAgreement))
	mux.Handle("GET /v1/stats", admin(s.handleStats))
	return mux
}

// handleHealth handles GET /v1/health.
func (s *AgreementServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListSections handles GET /v1/sections.
func (s *AgreementServer) handleListSections(w http.ResponseWriter, _ *http.Request) {
	sections := s.registry.Sections()
	if sections == nil {
		sections = []model.Section{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

// handleTemplate handles GET /v1/template.
func (s *AgreementServer) handleTemplate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"template": model.AuctionTemplate})
}

// decodeJSON decodes the request body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return inputError("invalid JSON body")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

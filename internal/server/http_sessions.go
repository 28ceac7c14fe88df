package server

import (
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/agreements/internal/gate"
	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/session"
	"github.com/alfredjeanlab/agreements/internal/submit"
)

// sessionResponse is the state of one reading session.
type sessionResponse struct {
	SessionID string              `json:"session_id"`
	State     model.ProgressState `json:"state"`
	Steps     []model.Step        `json:"steps"`
	Agreement *model.Agreement    `json:"agreement,omitempty"`
}

func newSessionResponse(sess *session.Session) sessionResponse {
	st := sess.Gate.State()
	return sessionResponse{
		SessionID: sess.ID,
		State:     st,
		Steps:     st.Steps(sess.Gate.Sections()),
		Agreement: sess.Coordinator.Signed(),
	}
}

// lookupSession resolves the {id} path value, writing a 404 when unknown.
func (s *AgreementServer) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// handleOpenSession handles POST /v1/sessions.
// An optional {"session_id": "..."} body resumes an earlier session.
func (s *AgreementServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &in, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(in.SessionID) > 64 {
		writeError(w, http.StatusBadRequest, "session_id is too long")
		return
	}

	sess, err := s.registry.Open(r.Context(), in.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	resp := newSessionResponse(sess)
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": resp.SessionID,
		"sections":   sess.Gate.Sections(),
		"state":      resp.State,
		"steps":      resp.Steps,
		"agreement":  resp.Agreement,
	})
}

// handleGetSession handles GET /v1/sessions/{id}.
func (s *AgreementServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// handleListSessions handles GET /v1/sessions.
func (s *AgreementServer) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.registry.List()})
}

// handleResetSession handles DELETE /v1/sessions/{id}.
// The session is dropped and its unlock flag cleared.
func (s *AgreementServer) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Reset(r.Context(), r.PathValue("id")); err != nil {
		slog.Error("reset session failed", "session_id", r.PathValue("id"), "err", err)
		writeError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleScroll handles POST /v1/sessions/{id}/scroll.
// The frame goes through the session's frame throttle; the response carries
// the state after the evaluation the frame landed in.
func (s *AgreementServer) handleScroll(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var frame gate.Frame
	if err := decodeJSON(r, &frame, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if frame.ViewportHeight <= 0 {
		writeError(w, http.StatusBadRequest, "viewport_height must be positive")
		return
	}

	ev, err := sess.Throttle.Evaluate(r.Context(), frame)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "scroll evaluation canceled")
		return
	}

	completed := ev.CompletedNow
	if completed == nil {
		completed = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":         sess.Gate.State(),
		"completed_now": completed,
		"unlocked_now":  ev.UnlockedNow,
	})
}

// handleObserve handles POST /v1/sessions/{id}/observe.
// Clients that evaluate the read predicate themselves report one section at
// a time here.
func (s *AgreementServer) handleObserve(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var in struct {
		SectionID string `json:"section_id"`
		Read      bool   `json:"read"`
	}
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.SectionID == "" {
		writeError(w, http.StatusBadRequest, "section_id is required")
		return
	}

	_, completedNow := sess.Gate.Observe(in.SectionID, in.Read)
	// Persistence failures are logged by the gate; the session stays unlocked.
	_, _ = sess.Gate.TryUnlock(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{
		"state":     sess.Gate.State(),
		"completed": completedNow,
	})
}

// handleSubmitAgreement handles POST /v1/sessions/{id}/agreement.
func (s *AgreementServer) handleSubmitAgreement(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var in model.AgreementInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := sess.Coordinator.Submit(r.Context(), in, submit.Meta{
		SessionID: sess.ID,
		IPHash:    submit.OriginHash(ClientIP(r), s.ipSalt),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"agreement": res.Agreement,
		"state":     sess.Gate.State(),
		"replayed":  res.Replayed,
	})
}

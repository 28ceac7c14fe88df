package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/agreements/internal/gate"
	"github.com/alfredjeanlab/agreements/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string // URL-encoded path (for testing PathEscape)
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, "")
	return c, srv
}

func TestHTTPClient_Sections(t *testing.T) {
	h := &testHandler{responseBody: `{"sections":[{"id":"intro","ordinal":1,"title":"Intro"},{"id":"rules","ordinal":2}]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	got, err := c.Sections(context.Background())
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	if h.method != http.MethodGet || h.path != "/v1/sections" {
		t.Errorf("request = %s %s, want GET /v1/sections", h.method, h.path)
	}
	if len(got) != 2 || got[0].ID != "intro" || got[1].Ordinal != 2 {
		t.Errorf("sections = %+v", got)
	}
}

func TestHTTPClient_OpenSession(t *testing.T) {
	const resp = `{"session_id":"s1","state":{"session_id":"s1","total":3,"completed":[],"active":1},"steps":[{"ordinal":1,"status":"active"}]}`

	t.Run("new", func(t *testing.T) {
		h := &testHandler{statusCode: http.StatusCreated, responseBody: resp}
		c, srv := newTestClient(h)
		defer srv.Close()

		sess, err := c.OpenSession(context.Background(), "")
		if err != nil {
			t.Fatalf("OpenSession: %v", err)
		}
		if h.method != http.MethodPost || h.path != "/v1/sessions" {
			t.Errorf("request = %s %s", h.method, h.path)
		}
		if h.body != "" {
			t.Errorf("body = %q, want empty", h.body)
		}
		if sess.SessionID != "s1" || sess.State.Total != 3 || sess.State.Active != 1 {
			t.Errorf("session = %+v", sess)
		}
	})

	t.Run("resume", func(t *testing.T) {
		h := &testHandler{statusCode: http.StatusCreated, responseBody: resp}
		c, srv := newTestClient(h)
		defer srv.Close()

		if _, err := c.OpenSession(context.Background(), "s1"); err != nil {
			t.Fatalf("OpenSession: %v", err)
		}
		var body map[string]string
		if err := json.Unmarshal([]byte(h.body), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["session_id"] != "s1" {
			t.Errorf("session_id = %q, want s1", body["session_id"])
		}
		if h.contentType != "application/json" {
			t.Errorf("Content-Type = %q", h.contentType)
		}
	})
}

func TestHTTPClient_GetSession_PathEscape(t *testing.T) {
	h := &testHandler{responseBody: `{"session_id":"a/b","state":{"total":3}}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.GetSession(context.Background(), "a/b"); err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if h.rawPath != "/v1/sessions/a%2Fb" {
		t.Errorf("raw path = %q, want /v1/sessions/a%%2Fb", h.rawPath)
	}
}

func TestHTTPClient_Scroll(t *testing.T) {
	h := &testHandler{responseBody: `{"state":{"total":2,"completed":[1,2],"unlocked":true},"completed_now":[2],"unlocked_now":true}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	frame := gate.Frame{
		ViewportHeight: 800,
		Sections: []gate.SectionBounds{
			{ID: "intro", Bounds: gate.Bounds{Top: -900, Bottom: -10}},
		},
	}
	resp, err := c.Scroll(context.Background(), "s1", frame)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if h.path != "/v1/sessions/s1/scroll" {
		t.Errorf("path = %q", h.path)
	}
	var sent gate.Frame
	if err := json.Unmarshal([]byte(h.body), &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent.ViewportHeight != 800 || len(sent.Sections) != 1 || sent.Sections[0].Bottom != -10 {
		t.Errorf("sent frame = %+v", sent)
	}
	if !resp.UnlockedNow || !resp.State.Unlocked || len(resp.CompletedNow) != 1 || resp.CompletedNow[0] != 2 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHTTPClient_Observe(t *testing.T) {
	h := &testHandler{responseBody: `{"state":{"total":3,"completed":[1],"active":2},"completed":true}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	state, err := c.Observe(context.Background(), "s1", "intro", true)
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !strings.Contains(h.body, `"section_id":"intro"`) || !strings.Contains(h.body, `"read":true`) {
		t.Errorf("body = %s", h.body)
	}
	if state.Active != 2 || len(state.Completed) != 1 {
		t.Errorf("state = %+v", state)
	}
}

func TestHTTPClient_Submit(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"agreement":{"id":"a1","first_name":"Ada","last_name":"Lovelace","confirmation_code":"DKP-AB12CD","agreed_at":"2026-01-15T10:00:00Z"},"state":{"signed":true},"replayed":false}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	resp, err := c.Submit(context.Background(), "s1", model.AgreementInput{FirstName: "ada", LastName: "lovelace", Agreed: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/sessions/s1/agreement" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	var sent model.AgreementInput
	if err := json.Unmarshal([]byte(h.body), &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent.FirstName != "ada" || !sent.Agreed {
		t.Errorf("sent = %+v", sent)
	}
	if resp.Agreement.ConfirmationCode != "DKP-AB12CD" || !resp.State.Signed || resp.Replayed {
		t.Errorf("response = %+v", resp)
	}
}

func TestHTTPClient_Submit_ValidationError(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusBadRequest,
		responseBody: `{"error":"validation failed","fields":[{"field":"firstName","message":"First name is required"},{"field":"agreed","message":"You must agree to the rules"}]}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.Submit(context.Background(), "s1", model.AgreementInput{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if len(apiErr.Fields) != 2 || apiErr.Fields[0].Field != model.FieldFirstName {
		t.Errorf("fields = %+v", apiErr.Fields)
	}
	if !strings.Contains(apiErr.Error(), "First name is required; You must agree to the rules") {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestHTTPClient_Submit_ExhaustedRetries(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusBadGateway,
		responseBody: `{"error":"Something went wrong. Please try again.","kind":"exhausted_retries","retry":true}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.Submit(context.Background(), "s1", model.AgreementInput{FirstName: "A", LastName: "B", Agreed: true})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Kind != "exhausted_retries" || !apiErr.Retry {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.Error() != "HTTP 502: Something went wrong. Please try again." {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestHTTPClient_Template(t *testing.T) {
	h := &testHandler{responseBody: `{"template":"***MEMBER AUCTION***"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	got, err := c.Template(context.Background())
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	if got != "***MEMBER AUCTION***" {
		t.Errorf("template = %q", got)
	}
}

func TestHTTPClient_ListAgreements(t *testing.T) {
	tests := []struct {
		name      string
		req       *ListAgreementsRequest
		wantQuery string
	}{
		{"defaults", &ListAgreementsRequest{}, ""},
		{"search", &ListAgreementsRequest{Search: "ada"}, "search=ada"},
		{"paging", &ListAgreementsRequest{Limit: 10, Offset: 20}, "limit=10&offset=20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &testHandler{responseBody: `{"agreements":[{"id":"a1","confirmation_code":"DKP-AAAAAA"}],"total":41}`}
			c, srv := newTestClient(h)
			defer srv.Close()

			resp, err := c.ListAgreements(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("ListAgreements: %v", err)
			}
			if h.path != "/v1/agreements" {
				t.Errorf("path = %q", h.path)
			}
			if h.query != tt.wantQuery {
				t.Errorf("query = %q, want %q", h.query, tt.wantQuery)
			}
			if resp.Total != 41 || len(resp.Agreements) != 1 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestHTTPClient_ListSessions(t *testing.T) {
	h := &testHandler{responseBody: `{"sessions":[{"session_id":"s1","opened":"2026-01-15T10:00:00Z","last_seen":"2026-01-15T10:05:00Z","unlocked":true,"completed":3}]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	got, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if h.path != "/v1/sessions" || h.method != http.MethodGet {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if len(got) != 1 || got[0].SessionID != "s1" || !got[0].Unlocked || got[0].Completed != 3 {
		t.Errorf("sessions = %+v", got)
	}
	if got[0].LastSeen.Sub(got[0].Opened) != 5*time.Minute {
		t.Errorf("times = %v, %v", got[0].Opened, got[0].LastSeen)
	}
}

func TestHTTPClient_ResetSession(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.ResetSession(context.Background(), "ses/1"); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	if h.method != http.MethodDelete || h.rawPath != "/v1/sessions/ses%2F1" {
		t.Errorf("request = %s %s", h.method, h.rawPath)
	}
}

func TestHTTPClient_GetAgreement_NotFound(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNotFound, responseBody: `{"error":"agreement not found"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.GetAgreement(context.Background(), "DKP-NOPE00")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if h.path != "/v1/agreements/DKP-NOPE00" {
		t.Errorf("path = %q", h.path)
	}
}

func TestHTTPClient_Stats(t *testing.T) {
	h := &testHandler{responseBody: `{"total":10,"today":1,"week":4,"month":9}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	s, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if *s != (model.Stats{Total: 10, Today: 1, Week: 4, Month: 9}) {
		t.Errorf("stats = %+v", s)
	}
}

func TestHTTPClient_Token(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret")
	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q", status)
	}
	if h.auth != "Bearer secret" {
		t.Errorf("Authorization = %q", h.auth)
	}
	if h.path != "/v1/health" {
		t.Errorf("path = %q (trailing slash not trimmed?)", h.path)
	}
}

func TestHTTPClient_NonJSONError(t *testing.T) {
	h := &testHandler{statusCode: http.StatusInternalServerError, responseBody: "boom"}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "boom" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestHTTPClient_ContextCanceled(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Health(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

var _ AgreementClient = (*HTTPClient)(nil)

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/agreements/internal/gate"
	"github.com/alfredjeanlab/agreements/internal/model"
)

// HTTPClient implements AgreementClient using the agreements HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  "ag-cli",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Reading flow ---

func (c *HTTPClient) Sections(ctx context.Context) ([]model.Section, error) {
	var resp struct {
		Sections []model.Section `json:"sections"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sections, nil
}

func (c *HTTPClient) OpenSession(ctx context.Context, resumeID string) (*Session, error) {
	var body any
	if resumeID != "" {
		body = map[string]string{"session_id": resumeID}
	}
	var sess Session
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", body, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *HTTPClient) Scroll(ctx context.Context, id string, frame gate.Frame) (*ScrollResponse, error) {
	var resp ScrollResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id)+"/scroll", frame, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Observe(ctx context.Context, id, sectionID string, read bool) (*model.ProgressState, error) {
	body := map[string]any{"section_id": sectionID, "read": read}
	var resp struct {
		State model.ProgressState `json:"state"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id)+"/observe", body, &resp); err != nil {
		return nil, err
	}
	return &resp.State, nil
}

func (c *HTTPClient) Submit(ctx context.Context, id string, in model.AgreementInput) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id)+"/agreement", in, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Template(ctx context.Context) (string, error) {
	var resp struct {
		Template string `json:"template"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/template", nil, &resp); err != nil {
		return "", err
	}
	return resp.Template, nil
}

// --- Admin ---

func (c *HTTPClient) ListSessions(ctx context.Context) ([]SessionEntry, error) {
	var resp struct {
		Sessions []SessionEntry `json:"sessions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *HTTPClient) ResetSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ListAgreements(ctx context.Context, req *ListAgreementsRequest) (*ListAgreementsResponse, error) {
	q := url.Values{}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := "/v1/agreements"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListAgreementsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetAgreement(ctx context.Context, code string) (*model.Agreement, error) {
	var a model.Agreement
	if err := c.doJSON(ctx, http.MethodGet, "/v1/agreements/"+url.PathEscape(code), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) Stats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Kind       string             // submission failure kind, if any
	Fields     []model.FieldError // validation failures, if any
	Retry      bool
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Message
		}
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string             `json:"error"`
			Kind   string             `json:"kind"`
			Fields []model.FieldError `json:"fields"`
			Retry  bool               `json:"retry"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    errResp.Error,
				Kind:       errResp.Kind,
				Fields:     errResp.Fields,
				Retry:      errResp.Retry,
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

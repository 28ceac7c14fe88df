// Package client provides a transport-agnostic interface for the agreements
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/agreements/internal/gate"
	"github.com/alfredjeanlab/agreements/internal/model"
)

// AgreementClient is the interface that all ag CLI commands use to
// communicate with the agreements server.
type AgreementClient interface {
	// Reading flow
	Sections(ctx context.Context) ([]model.Section, error)
	OpenSession(ctx context.Context, resumeID string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	Scroll(ctx context.Context, id string, frame gate.Frame) (*ScrollResponse, error)
	Observe(ctx context.Context, id, sectionID string, read bool) (*model.ProgressState, error)
	Submit(ctx context.Context, id string, in model.AgreementInput) (*SubmitResponse, error)
	Template(ctx context.Context) (string, error)

	// Admin
	ListSessions(ctx context.Context) ([]SessionEntry, error)
	ResetSession(ctx context.Context, id string) error
	ListAgreements(ctx context.Context, req *ListAgreementsRequest) (*ListAgreementsResponse, error)
	GetAgreement(ctx context.Context, code string) (*model.Agreement, error)
	Stats(ctx context.Context) (*model.Stats, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// Session is a reading session as returned by the server.
type Session struct {
	SessionID string              `json:"session_id"`
	Sections  []model.Section     `json:"sections,omitempty"`
	State     model.ProgressState `json:"state"`
	Steps     []model.Step        `json:"steps"`
	Agreement *model.Agreement    `json:"agreement,omitempty"`
}

// SessionEntry is one row of the admin session listing.
type SessionEntry struct {
	SessionID string    `json:"session_id"`
	Opened    time.Time `json:"opened"`
	LastSeen  time.Time `json:"last_seen"`
	Unlocked  bool      `json:"unlocked"`
	Signed    bool      `json:"signed"`
	Completed int       `json:"completed"`
}

// ScrollResponse is the result of reporting one scroll frame.
type ScrollResponse struct {
	State        model.ProgressState `json:"state"`
	CompletedNow []int               `json:"completed_now"`
	UnlockedNow  bool                `json:"unlocked_now"`
}

// SubmitResponse is a recorded (or replayed) agreement.
type SubmitResponse struct {
	Agreement *model.Agreement    `json:"agreement"`
	State     model.ProgressState `json:"state"`
	Replayed  bool                `json:"replayed"`
}

// ListAgreementsRequest holds parameters for listing agreements.
type ListAgreementsRequest struct {
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ListAgreementsResponse is the response from ListAgreements.
type ListAgreementsResponse struct {
	Agreements []*model.Agreement `json:"agreements"`
	Total      int                `json:"total"`
}

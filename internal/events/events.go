// Package events publishes gate and submission lifecycle events. Delivery is
// best-effort: a failed publish is logged by the caller and never fails the
// request that produced it.
package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/agreements/internal/model"
)

// Event topic constants
const (
	TopicSectionCompleted = "agreements.section.completed"
	TopicGateUnlocked     = "agreements.gate.unlocked"
	TopicAgreementSigned  = "agreements.agreement.signed"
	TopicSubmissionFailed = "agreements.submission.failed"

	// TopicAll matches every agreements topic.
	TopicAll = "agreements.>"
)

// Event types

type SectionCompleted struct {
	SessionID string    `json:"session_id"`
	SectionID string    `json:"section_id"`
	Ordinal   int       `json:"ordinal"`
	Total     int       `json:"total"`
	At        time.Time `json:"at"`
}

type GateUnlocked struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

type AgreementSigned struct {
	Agreement *model.Agreement `json:"agreement"`
	Attempts  int              `json:"attempts"`
}

type SubmissionFailed struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"` // "backend" | "exhausted_retries"
	Message   string `json:"message"`
	Attempts  int    `json:"attempts"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

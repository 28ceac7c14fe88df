// Package submit implements the agreement submission protocol: validate and
// normalize the form, generate a confirmation code, insert the record and
// retry with a fresh code when the backend reports a collision.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/agreements/internal/events"
	"github.com/alfredjeanlab/agreements/internal/idgen"
	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/store"
)

// DefaultMaxAttempts caps the number of inserts per submission.
const DefaultMaxAttempts = 5

// Gate is the part of the progress gate the coordinator depends on.
type Gate interface {
	IsUnlocked() bool
	MarkFinalStep()
}

// Options configures a Coordinator. Zero values select the defaults.
type Options struct {
	MaxAttempts int
	NewCode     func() (string, error)
	Now         func() time.Time
	Publisher   events.Publisher
	Logger      *slog.Logger
}

// Meta is request metadata stored alongside the agreement.
type Meta struct {
	SessionID string
	IPHash    string
	UserAgent string
}

// Result is a successful submission.
type Result struct {
	Agreement *model.Agreement
	Attempts  int
	// Replayed is true when the session had already signed and the stored
	// record was returned without a new insert.
	Replayed bool
}

// Coordinator submits agreements for one session. At most one submission
// runs at a time; once a submission succeeds later calls replay its record.
type Coordinator struct {
	backend store.Store
	gate    Gate
	opts    Options

	mu       sync.Mutex
	inFlight bool
	signed   *model.Agreement
}

// New creates a Coordinator inserting into backend and guarded by gate.
func New(backend store.Store, gate Gate, opts Options) *Coordinator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.NewCode == nil {
		opts.NewCode = idgen.ConfirmationCode
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Publisher = events.OrNoop(opts.Publisher)
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{backend: backend, gate: gate, opts: opts}
}

// Submit validates in and stores a new agreement.
//
// Errors:
//   - ErrGateLocked if the gate is still locked (no I/O happens)
//   - *model.ValidationError listing every invalid field (no I/O happens)
//   - ErrSubmissionInFlight if another submission is running
//   - *SubmissionError of KindBackend or KindExhaustedRetries
//
// Once the session has signed, the stored record is returned with Replayed
// set, before any other check. A failed submission leaves the gate
// untouched and may be retried.
func (c *Coordinator) Submit(ctx context.Context, in model.AgreementInput, meta Meta) (*Result, error) {
	if a := c.Signed(); a != nil {
		return &Result{Agreement: a, Replayed: true}, nil
	}
	if !c.gate.IsUnlocked() {
		return nil, ErrGateLocked
	}

	first, last := model.NormalizeNames(in.FirstName, in.LastName)
	if errs := model.ValidateAgreement(model.AgreementInput{FirstName: first, LastName: last, Agreed: in.Agreed}); len(errs) > 0 {
		return nil, &model.ValidationError{Errors: errs}
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if c.signed != nil {
		a := c.signed
		c.mu.Unlock()
		return &Result{Agreement: a, Replayed: true}, nil
	}
	c.inFlight = true
	c.mu.Unlock()

	a := &model.Agreement{
		FirstName: first,
		LastName:  last,
		AgreedAt:  c.opts.Now().UTC(),
		IPHash:    meta.IPHash,
		UserAgent: meta.UserAgent,
		SessionID: meta.SessionID,
	}
	attempts, err := c.insert(ctx, a)

	c.mu.Lock()
	c.inFlight = false
	if err == nil {
		c.signed = a
	}
	c.mu.Unlock()

	if err != nil {
		c.reportFailure(ctx, meta.SessionID, err)
		return nil, err
	}

	c.gate.MarkFinalStep()
	if perr := c.opts.Publisher.Publish(ctx, events.TopicAgreementSigned, events.AgreementSigned{
		Agreement: a,
		Attempts:  attempts,
	}); perr != nil {
		c.opts.Logger.Warn("submit: failed to publish event", "topic", events.TopicAgreementSigned, "err", perr)
	}
	c.opts.Logger.Info("submit: agreement recorded",
		"session_id", meta.SessionID,
		"code", a.ConfirmationCode,
		"attempts", attempts)
	return &Result{Agreement: a, Attempts: attempts}, nil
}

// Resume seeds the coordinator with an agreement already stored for its
// session, so a rebuilt session replays it instead of inserting again.
func (c *Coordinator) Resume(a *model.Agreement) {
	if a == nil {
		return
	}
	c.mu.Lock()
	if c.signed == nil {
		c.signed = a
	}
	c.mu.Unlock()
	c.gate.MarkFinalStep()
}

// Signed returns the agreement recorded by this coordinator, if any.
func (c *Coordinator) Signed() *model.Agreement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signed
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeRetry
	outcomeErr
)

// insert runs the bounded insert loop, drawing a fresh code for every
// attempt. It returns the number of attempts made.
func (c *Coordinator) insert(ctx context.Context, a *model.Agreement) (int, error) {
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		code, err := c.opts.NewCode()
		if err != nil {
			return attempt, &SubmissionError{Kind: KindBackend, Message: err.Error(), Attempts: attempt, Err: err}
		}
		a.ConfirmationCode = code

		out, err := c.attempt(ctx, a)
		switch out {
		case outcomeOK:
			return attempt, nil
		case outcomeRetry:
			c.opts.Logger.Debug("submit: confirmation code collision", "code", code, "attempt", attempt)
			continue
		default:
			return attempt, &SubmissionError{Kind: KindBackend, Message: err.Error(), Attempts: attempt, Err: err}
		}
	}
	return c.opts.MaxAttempts, &SubmissionError{
		Kind:     KindExhaustedRetries,
		Message:  fmt.Sprintf("%d confirmation code collisions", c.opts.MaxAttempts),
		Attempts: c.opts.MaxAttempts,
		Err:      store.ErrUniqueViolation,
	}
}

func (c *Coordinator) attempt(ctx context.Context, a *model.Agreement) (outcome, error) {
	err := c.backend.InsertAgreement(ctx, a)
	switch {
	case err == nil:
		return outcomeOK, nil
	case errors.Is(err, store.ErrUniqueViolation):
		return outcomeRetry, err
	default:
		return outcomeErr, err
	}
}

func (c *Coordinator) reportFailure(ctx context.Context, sessionID string, err error) {
	var se *SubmissionError
	if !errors.As(err, &se) {
		return
	}
	if se.Kind == KindExhaustedRetries {
		c.opts.Logger.Error("submit: exhausted confirmation code retries",
			"session_id", sessionID,
			"attempts", se.Attempts)
	} else {
		c.opts.Logger.Error("submit: backend error",
			"session_id", sessionID,
			"attempts", se.Attempts,
			"err", se.Err)
	}
	if perr := c.opts.Publisher.Publish(ctx, events.TopicSubmissionFailed, events.SubmissionFailed{
		SessionID: sessionID,
		Kind:      string(se.Kind),
		Message:   se.Message,
		Attempts:  se.Attempts,
	}); perr != nil {
		c.opts.Logger.Warn("submit: failed to publish event", "topic", events.TopicSubmissionFailed, "err", perr)
	}
}

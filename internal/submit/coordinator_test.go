package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/agreements/internal/events"
	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/store"
)

// mockStore is a store.Store whose InsertAgreement result is scripted per call.
type mockStore struct {
	mu       sync.Mutex
	inserted []*model.Agreement
	codes    []string
	results  []error       // result for call i; missing entries succeed
	always   error         // when set, every call returns it
	block    chan struct{} // when set, InsertAgreement waits on it
	entered  chan struct{}
}

func (m *mockStore) InsertAgreement(_ context.Context, a *model.Agreement) error {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.codes)
	m.codes = append(m.codes, a.ConfirmationCode)
	if m.always != nil {
		return m.always
	}
	if i < len(m.results) && m.results[i] != nil {
		return m.results[i]
	}
	cp := *a
	m.inserted = append(m.inserted, &cp)
	return nil
}

func (m *mockStore) GetAgreementByCode(context.Context, string) (*model.Agreement, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) GetAgreementBySession(context.Context, string) (*model.Agreement, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) ListAgreements(context.Context, model.AgreementFilter) ([]*model.Agreement, int, error) {
	return nil, 0, nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

type fakeGate struct {
	unlocked bool
	final    int
}

func (g *fakeGate) IsUnlocked() bool { return g.unlocked }
func (g *fakeGate) MarkFinalStep()   { g.final++ }

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// sequentialCodes returns DKP-CODE01, DKP-CODE02, ...
func sequentialCodes() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("DKP-CODE%02d", n), nil
	}
}

func newTestCoordinator(s store.Store, g Gate, pub events.Publisher) *Coordinator {
	return New(s, g, Options{
		NewCode:   sequentialCodes(),
		Now:       func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) },
		Publisher: pub,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

var validInput = model.AgreementInput{FirstName: "  john ", LastName: "o'BRIEN", Agreed: true}

func TestSubmit_Success(t *testing.T) {
	s := &mockStore{}
	g := &fakeGate{unlocked: true}
	pub := &recordingPublisher{}
	c := newTestCoordinator(s, g, pub)

	res, err := c.Submit(context.Background(), validInput, Meta{SessionID: "ses-1", IPHash: "h", UserAgent: "ua"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	a := res.Agreement
	if a.FirstName != "John" || a.LastName != "O'brien" {
		t.Errorf("names not normalized: %q %q", a.FirstName, a.LastName)
	}
	if a.ConfirmationCode != "DKP-CODE01" || res.Attempts != 1 {
		t.Errorf("code=%s attempts=%d", a.ConfirmationCode, res.Attempts)
	}
	if a.SessionID != "ses-1" || a.IPHash != "h" || a.UserAgent != "ua" {
		t.Errorf("meta not stored: %+v", a)
	}
	if g.final != 1 {
		t.Errorf("MarkFinalStep called %d times, want 1", g.final)
	}
	if len(pub.topics) != 1 || pub.topics[0] != events.TopicAgreementSigned {
		t.Errorf("published %v", pub.topics)
	}
}

func TestSubmit_RetriesOnUniqueViolation(t *testing.T) {
	s := &mockStore{results: []error{store.ErrUniqueViolation, store.ErrUniqueViolation}}
	c := newTestCoordinator(s, &fakeGate{unlocked: true}, nil)

	res, err := c.Submit(context.Background(), validInput, Meta{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.calls() != 3 {
		t.Fatalf("insert called %d times, want 3", s.calls())
	}
	if res.Agreement.ConfirmationCode != "DKP-CODE03" {
		t.Errorf("code = %s, want third code DKP-CODE03", res.Agreement.ConfirmationCode)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if len(s.inserted) != 1 {
		t.Errorf("stored %d records, want 1", len(s.inserted))
	}
}

func TestSubmit_ExhaustedRetries(t *testing.T) {
	s := &mockStore{always: fmt.Errorf("%w: agreements_confirmation_code_key", store.ErrUniqueViolation)}
	g := &fakeGate{unlocked: true}
	pub := &recordingPublisher{}
	c := newTestCoordinator(s, g, pub)

	_, err := c.Submit(context.Background(), validInput, Meta{SessionID: "ses-1"})
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SubmissionError, got %v", err)
	}
	if se.Kind != KindExhaustedRetries {
		t.Fatalf("kind = %s, want %s", se.Kind, KindExhaustedRetries)
	}
	if se.Attempts != DefaultMaxAttempts || s.calls() != DefaultMaxAttempts {
		t.Fatalf("attempts = %d, inserts = %d, want %d", se.Attempts, s.calls(), DefaultMaxAttempts)
	}
	if !IsExhausted(err) {
		t.Error("IsExhausted should be true")
	}
	if g.final != 0 {
		t.Error("failed submission must not mark the final step")
	}
	if len(pub.topics) != 1 || pub.topics[0] != events.TopicSubmissionFailed {
		t.Errorf("published %v", pub.topics)
	}

	// The session can resubmit after a failure.
	s.always = nil
	if _, err := c.Submit(context.Background(), validInput, Meta{}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
}

func TestSubmit_BackendErrorNotRetried(t *testing.T) {
	s := &mockStore{always: errors.New("connection refused")}
	c := newTestCoordinator(s, &fakeGate{unlocked: true}, nil)

	_, err := c.Submit(context.Background(), validInput, Meta{})
	var se *SubmissionError
	if !errors.As(err, &se) || se.Kind != KindBackend {
		t.Fatalf("expected backend SubmissionError, got %v", err)
	}
	if se.Message != "connection refused" {
		t.Errorf("message = %q, want backend message verbatim", se.Message)
	}
	if s.calls() != 1 {
		t.Errorf("insert called %d times, want 1", s.calls())
	}
}

func TestSubmit_GateLocked(t *testing.T) {
	s := &mockStore{}
	c := newTestCoordinator(s, &fakeGate{unlocked: false}, nil)

	if _, err := c.Submit(context.Background(), validInput, Meta{}); !errors.Is(err, ErrGateLocked) {
		t.Fatalf("expected ErrGateLocked, got %v", err)
	}
	if s.calls() != 0 {
		t.Fatal("locked gate must not reach the store")
	}
}

func TestSubmit_ValidationBeforeIO(t *testing.T) {
	s := &mockStore{}
	c := newTestCoordinator(s, &fakeGate{unlocked: true}, nil)

	for _, tc := range []struct {
		name       string
		in         model.AgreementInput
		wantFields []string
	}{
		{"missing first", model.AgreementInput{FirstName: "", LastName: "Smith", Agreed: true}, []string{model.FieldFirstName}},
		{"whitespace last", model.AgreementInput{FirstName: "Jo", LastName: "   ", Agreed: true}, []string{model.FieldLastName}},
		{"not agreed", model.AgreementInput{FirstName: "Jo", LastName: "Smith"}, []string{model.FieldAgreed}},
		{"everything", model.AgreementInput{}, []string{model.FieldFirstName, model.FieldLastName, model.FieldAgreed}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Submit(context.Background(), tc.in, Meta{})
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *model.ValidationError, got %v", err)
			}
			if len(ve.Errors) != len(tc.wantFields) {
				t.Fatalf("got %d errors, want %d: %v", len(ve.Errors), len(tc.wantFields), ve.Errors)
			}
			for i, f := range tc.wantFields {
				if ve.Errors[i].Field != f {
					t.Errorf("error %d field = %s, want %s", i, ve.Errors[i].Field, f)
				}
			}
		})
	}
	if s.calls() != 0 {
		t.Fatalf("validation failures reached the store %d times", s.calls())
	}
}

func TestSubmit_InFlightRejected(t *testing.T) {
	s := &mockStore{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := newTestCoordinator(s, &fakeGate{unlocked: true}, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), validInput, Meta{})
		errc <- err
	}()
	<-s.entered

	if _, err := c.Submit(context.Background(), validInput, Meta{}); !errors.Is(err, ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}

	close(s.block)
	if err := <-errc; err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if len(s.inserted) != 1 {
		t.Fatalf("stored %d records, want exactly 1", len(s.inserted))
	}
}

func TestSubmit_ReplayAfterSuccess(t *testing.T) {
	s := &mockStore{}
	g := &fakeGate{unlocked: true}
	c := newTestCoordinator(s, g, nil)

	first, err := c.Submit(context.Background(), validInput, Meta{})
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.Submit(context.Background(), model.AgreementInput{FirstName: "Other", LastName: "Person", Agreed: true}, Meta{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Agreement.ConfirmationCode != first.Agreement.ConfirmationCode {
		t.Fatalf("expected replay of %s, got %+v", first.Agreement.ConfirmationCode, again)
	}
	if s.calls() != 1 {
		t.Errorf("insert called %d times, want 1", s.calls())
	}
	if c.Signed() == nil {
		t.Error("Signed() should return the stored agreement")
	}
}

func TestOriginHash(t *testing.T) {
	h := OriginHash("203.0.113.7", DefaultSalt)
	if len(h) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h))
	}
	if h != OriginHash("203.0.113.7", DefaultSalt) {
		t.Error("hash should be deterministic")
	}
	if h == OriginHash("203.0.113.7", "other") {
		t.Error("salt should change the hash")
	}
	if OriginHash("", DefaultSalt) != "" {
		t.Error("empty ip should give empty hash")
	}
}

func TestSubmit_ResumeReplaysStoredAgreement(t *testing.T) {
	s := &mockStore{}
	g := &fakeGate{}
	c := newTestCoordinator(s, g, nil)

	stored := &model.Agreement{FirstName: "Jane", LastName: "Doe", ConfirmationCode: "DKP-RESUME", SessionID: "ses-1"}
	c.Resume(stored)
	if g.final != 1 {
		t.Errorf("MarkFinalStep called %d times, want 1", g.final)
	}

	// The gate may be locked again once its flag expired; the stored
	// record still wins.
	res, err := c.Submit(context.Background(), validInput, Meta{SessionID: "ses-1"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Replayed || res.Agreement != stored {
		t.Fatalf("expected replay of stored agreement, got %+v", res)
	}
	if s.calls() != 0 {
		t.Errorf("insert called %d times, want 0", s.calls())
	}

	c.Resume(nil)
	if c.Signed() != stored {
		t.Error("Resume(nil) should keep the stored agreement")
	}
}

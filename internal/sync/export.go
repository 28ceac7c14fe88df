package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version        string    `json:"version"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	AgreementCount int       `json:"agreement_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every agreement in the store as JSONL to w, oldest
// first, and returns the number of agreements written.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) (int, error) {
	agreements, _, err := s.ListAgreements(ctx, model.AgreementFilter{})
	if err != nil {
		return 0, fmt.Errorf("list agreements: %w", err)
	}

	// Ties on agreed_at fall back to the code so exports are stable.
	sort.SliceStable(agreements, func(i, j int) bool {
		a, b := agreements[i], agreements[j]
		if !a.AgreedAt.Equal(b.AgreedAt) {
			return a.AgreedAt.Before(b.AgreedAt)
		}
		return a.ConfirmationCode < b.ConfirmationCode
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:        "1",
		Type:           "header",
		Timestamp:      time.Now().UTC(),
		AgreementCount: len(agreements),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, a := range agreements {
		if err := enc.Encode(record{Type: "agreement", Data: a}); err != nil {
			return 0, fmt.Errorf("encode agreement %s: %w", a.ConfirmationCode, err)
		}
	}

	return len(agreements), nil
}

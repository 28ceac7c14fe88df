// Package local implements the fallback agreement store used when no
// database is configured. Agreements are kept as a single JSON list under a
// fixed key in a directory on disk.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/store"
)

// Key is the fixed name of the agreements list.
const Key = "dkp_agreements"

// Store is a store.Store that appends agreements to a JSON list file.
// Confirmation-code uniqueness is not enforced.
type Store struct {
	mu   sync.Mutex
	path string
}

var _ store.Store = (*Store)(nil)

// New returns a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, Key+".json")}, nil
}

// Path returns the file backing the list.
func (s *Store) Path() string { return s.path }

// Append adds a record to the end of the list.
func (s *Store) Append(a *model.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.readLocked()
	if err != nil {
		return err
	}
	list = append(list, a)
	return s.writeLocked(list)
}

// ReadAll returns every stored record in insertion order. A missing file
// reads as an empty list.
func (s *Store) ReadAll() ([]*model.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) InsertAgreement(_ context.Context, a *model.Agreement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AgreedAt.IsZero() {
		a.AgreedAt = time.Now().UTC()
	}
	return s.Append(a)
}

// GetAgreementByCode returns the most recent record with the given code.
func (s *Store) GetAgreementByCode(_ context.Context, code string) (*model.Agreement, error) {
	list, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].ConfirmationCode == code {
			return list[i], nil
		}
	}
	return nil, fmt.Errorf("agreement %s: %w", code, store.ErrNotFound)
}

// GetAgreementBySession returns the most recent record signed in sessionID.
func (s *Store) GetAgreementBySession(_ context.Context, sessionID string) (*model.Agreement, error) {
	list, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	var found *model.Agreement
	for _, a := range list {
		if sessionID != "" && a.SessionID == sessionID && (found == nil || !a.AgreedAt.Before(found.AgreedAt)) {
			found = a
		}
	}
	if found == nil {
		return nil, fmt.Errorf("agreement for session %s: %w", sessionID, store.ErrNotFound)
	}
	return found, nil
}

func (s *Store) ListAgreements(_ context.Context, filter model.AgreementFilter) ([]*model.Agreement, int, error) {
	list, err := s.ReadAll()
	if err != nil {
		return nil, 0, err
	}

	search := strings.ToLower(filter.Search)
	var matched []*model.Agreement
	for _, a := range list {
		if filter.Since != nil && a.AgreedAt.Before(*filter.Since) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.FirstName), search) &&
			!strings.Contains(strings.ToLower(a.LastName), search) &&
			!strings.Contains(strings.ToLower(a.ConfirmationCode), search) {
			continue
		}
		matched = append(matched, a)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].AgreedAt.After(matched[j].AgreedAt)
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) readLocked() ([]*model.Agreement, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Key, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var list []*model.Agreement
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", Key, err)
	}
	return list, nil
}

// writeLocked replaces the list file via a temp file and rename so a crash
// never leaves a truncated list.
func (s *Store) writeLocked(list []*model.Agreement) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", Key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), Key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", Key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", Key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", Key, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", Key, err)
	}
	return nil
}

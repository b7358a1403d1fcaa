package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/jsonfile"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/logging"
)

// Sealer is the vault surface the store needs.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(blob string) (string, error)
}

// Logger defines the logging interface used by the Store.
type Logger interface {
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}
func (noopLogger) Info(string, ...any) {}

// Store reads and rewrites the sources file on every call so edits made by
// the CLI are visible to a running server. A mutex serialises writers
// within the process; there is no cross-process lock.
type Store struct {
	path   string
	kind   string
	sealer Sealer
	now    func() time.Time

	mu     sync.Mutex
	logger Logger
}

// NewStore creates a Store for one source kind inside the file at path.
func NewStore(path, kind string, sealer Sealer) *Store {
	return &Store{
		path:   path,
		kind:   kind,
		sealer: sealer,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

func (s *Store) load() (document, error) {
	doc := document{}
	if _, err := jsonfile.Load(s.path, &doc); err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	if doc[s.kind] == nil {
		doc[s.kind] = &collection{}
	}
	return doc, nil
}

// ListEnabled returns every enabled source with its token decrypted.
// Entries whose ciphertext fails the integrity check are skipped and logged.
func (s *Store) ListEnabled(_ context.Context) ([]Source, error) {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []Source
	for _, e := range doc[s.kind].Entries {
		if !e.Enabled {
			continue
		}
		src, err := s.decrypt(e)
		if err != nil {
			s.logger.Warn("skipping unusable source", "source_id", e.ID, "error", err)
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

// List returns all sources, enabled or not, with tokens masked.
// An entry that cannot be decrypted is listed with an empty hint.
func (s *Store) List(_ context.Context) ([]View, error) {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	entries := doc[s.kind].Entries
	out := make([]View, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.view(e))
	}
	return out, nil
}

// Get returns one source by id, decrypted, regardless of its enabled flag.
//
// Returns:
//   - ErrSourceNotFound if no entry has that id
//   - an error wrapping vault.ErrIntegrity if the token cannot be decrypted
func (s *Store) Get(_ context.Context, id string) (Source, error) {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return Source{}, err
	}

	for _, e := range doc[s.kind].Entries {
		if e.ID == id {
			return s.decrypt(e)
		}
	}
	return Source{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
}

// Upsert creates or merges a source and rewrites the file.
// updatedAt advances on every successful call.
func (s *Store) Upsert(_ context.Context, req Upsert) (View, error) {
	label, err := normaliseLabel(req.Label)
	if err != nil {
		return View{}, err
	}
	if req.Token != nil && strings.TrimSpace(*req.Token) == "" {
		return View{}, fmt.Errorf("%w: token cannot be blank", ErrInvalidSource)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return View{}, err
	}
	coll := doc[s.kind]

	idx := -1
	if req.ID != "" {
		for i := range coll.Entries {
			if coll.Entries[i].ID == req.ID {
				idx = i
				break
			}
		}
	}

	var e entry
	if idx >= 0 {
		e = coll.Entries[idx]
	} else {
		if req.Token == nil {
			return View{}, fmt.Errorf("%w: token is required for a new source", ErrInvalidSource)
		}
		e = entry{ID: uuid.NewString(), Enabled: true}
	}

	if label != nil {
		e.Label = *label
	}
	if req.Enabled != nil {
		e.Enabled = *req.Enabled
	}
	if req.Token != nil {
		blob, err := s.sealer.Seal(strings.TrimSpace(*req.Token))
		if err != nil {
			return View{}, fmt.Errorf("sealing token: %w", err)
		}
		e.EncryptedToken = blob
	}
	e.UpdatedAt = s.advance(e.UpdatedAt)

	// Build the new slice so a failed save leaves the loaded doc untouched.
	next := make([]entry, len(coll.Entries), len(coll.Entries)+1)
	copy(next, coll.Entries)
	if idx >= 0 {
		next[idx] = e
	} else {
		next = append(next, e)
	}
	doc[s.kind] = &collection{Entries: next}

	if err := jsonfile.Save(s.path, doc); err != nil {
		return View{}, fmt.Errorf("saving sources: %w", err)
	}

	s.logger.Info("source saved", "source_id", e.ID, "enabled", e.Enabled, "created", idx < 0)
	return s.view(e), nil
}

// advance returns now, or one millisecond past prev if the clock has not
// moved, so updatedAt strictly increases.
func (s *Store) advance(prev time.Time) time.Time {
	now := s.now().UTC().Truncate(time.Millisecond)
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

func (s *Store) decrypt(e entry) (Source, error) {
	token, err := s.sealer.Open(e.EncryptedToken)
	if err != nil {
		return Source{}, fmt.Errorf("source %s: %w", e.ID, err)
	}
	return Source{
		ID:        e.ID,
		Label:     e.Label,
		Token:     token,
		Enabled:   e.Enabled,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

func (s *Store) view(e entry) View {
	v := View{ID: e.ID, Label: e.Label, Enabled: e.Enabled, UpdatedAt: e.UpdatedAt}
	if token, err := s.sealer.Open(e.EncryptedToken); err == nil {
		v.TokenHint = logging.Redact(token)
	}
	return v
}

func normaliseLabel(label *string) (*string, error) {
	if label == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*label)
	if len([]rune(trimmed)) > MaxLabelLength {
		return nil, fmt.Errorf("%w: label exceeds %d characters", ErrInvalidSource, MaxLabelLength)
	}
	return &trimmed, nil
}

package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/metrics"
)

// Ensure TemplateStore implements TemplateWriter interface at compile time
var _ TemplateWriter = (*TemplateStore)(nil)

// TemplateStore holds the identity -> embeddings mapping in memory and mirrors
// every mutation to a SnapshotPersister.
//
// mu guards templates. Mutations take a snapshot under mu and acquire persistMu
// before releasing mu, so snapshots reach the persister in mutation order while
// readers are not blocked by disk or network I/O. Lock order is always mu, then persistMu.
type TemplateStore struct {
	mu        sync.RWMutex
	templates Snapshot

	persistMu sync.Mutex
	persister SnapshotPersister
	// dirty is set when the last save failed; guarded by persistMu.
	dirty bool

	maxPerUser int
	logger     *slog.Logger
	recorder   metrics.Recorder
}

// StoreOption configures a TemplateStore.
type StoreOption func(*TemplateStore)

// WithLogger sets the logger used for load and persist failures.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *TemplateStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) StoreOption {
	return func(s *TemplateStore) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithMaxPerUser overrides the number of embeddings retained per identity.
func WithMaxPerUser(n int) StoreOption {
	return func(s *TemplateStore) {
		if n > 0 {
			s.maxPerUser = n
		}
	}
}

// NewTemplateStore creates an empty store backed by persister. Call Load to
// read the existing snapshot.
func NewTemplateStore(persister SnapshotPersister, opts ...StoreOption) *TemplateStore {
	s := &TemplateStore{
		templates:  make(Snapshot),
		persister:  persister,
		maxPerUser: constants.MaxTemplatesPerUser,
		logger:     slog.Default(),
		recorder:   metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory state with the persisted snapshot. Any read or
// decode error leaves the store empty and is logged; it never fails startup.
func (s *TemplateStore) Load(ctx context.Context) {
	s.mu.Lock()
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snap, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Error("error loading face encodings, starting with an empty store",
			"backend", s.persister.Name(), "error", err)
		snap = make(Snapshot)
	}
	if snap == nil {
		snap = make(Snapshot)
	}

	// Enforce retention on snapshots written with a higher limit.
	for id, embs := range snap {
		if len(embs) > s.maxPerUser {
			snap[id] = embs[len(embs)-s.maxPerUser:]
		}
	}

	s.templates = snap
	n := len(snap)
	s.mu.Unlock()

	s.recorder.SetEnrolledUsers(n)
	if err == nil {
		s.logger.Info("loaded face encodings", "backend", s.persister.Name(), "users", n)
	}
}

// Add appends embedding to identity's templates, dropping the oldest ones
// beyond the retention limit, then persists the full snapshot. It returns the
// number of templates held for identity after the mutation and whether the
// persist succeeded; the in-memory update is kept either way.
func (s *TemplateStore) Add(ctx context.Context, identity string, embedding facematch.Embedding) (int, bool) {
	s.mu.Lock()
	current := s.templates[identity]
	next := make([]facematch.Embedding, 0, min(len(current)+1, s.maxPerUser))
	if drop := len(current) + 1 - s.maxPerUser; drop > 0 {
		current = current[drop:]
	}
	next = append(next, current...)
	next = append(next, embedding.Clone())
	s.templates[identity] = next
	snap, n := s.templates.Clone(), len(s.templates)
	s.persistMu.Lock()
	s.mu.Unlock()
	defer s.persistMu.Unlock()

	s.recorder.SetEnrolledUsers(n)
	s.logger.Info("added face encoding", "user_id", sanitizeForLog(identity), "templates", len(next))
	return len(next), s.save(ctx, snap) == nil
}

// Get returns a copy of the embeddings stored for identity, oldest first.
func (s *TemplateStore) Get(identity string) ([]facematch.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	embs, ok := s.templates[identity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	return slices.Clone(embs), nil
}

// Delete removes identity and persists. Returns false if identity was unknown,
// in which case nothing is written.
func (s *TemplateStore) Delete(ctx context.Context, identity string) bool {
	s.mu.Lock()
	if _, ok := s.templates[identity]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.templates, identity)
	snap, n := s.templates.Clone(), len(s.templates)
	s.persistMu.Lock()
	s.mu.Unlock()
	defer s.persistMu.Unlock()

	s.recorder.SetEnrolledUsers(n)
	s.logger.Info("deleted face encodings", "user_id", sanitizeForLog(identity))
	// A failed persist is logged inside save; the deletion stands in memory.
	_ = s.save(ctx, snap)
	return true
}

// Persist writes the current state as a complete snapshot.
func (s *TemplateStore) Persist(ctx context.Context) error {
	return s.persist(ctx, false)
}

// Flush retries the snapshot write only if the last mutation failed to
// persist. A store that was never mutated, including one whose Load failed,
// never touches the backend.
func (s *TemplateStore) Flush(ctx context.Context) error {
	return s.persist(ctx, true)
}

func (s *TemplateStore) persist(ctx context.Context, onlyDirty bool) error {
	s.mu.RLock()
	snap := s.templates.Clone()
	s.persistMu.Lock()
	s.mu.RUnlock()
	defer s.persistMu.Unlock()

	if onlyDirty && !s.dirty {
		return nil
	}
	return s.save(ctx, snap)
}

// Count returns the number of enrolled identities.
func (s *TemplateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.templates)
}

// Users returns all enrolled identities in sorted order.
func (s *TemplateStore) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates.Users()
}

// Snapshot returns a copy of the current state.
func (s *TemplateStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates.Clone()
}

// save must be called with persistMu held.
func (s *TemplateStore) save(ctx context.Context, snap Snapshot) error {
	start := time.Now()
	err := s.persister.Save(ctx, snap)
	s.recorder.RecordPersist(s.persister.Name(), time.Since(start), err)
	s.dirty = err != nil
	if err != nil {
		s.logger.Error("error saving face encodings", "backend", s.persister.Name(), "error", err)
		return fmt.Errorf("persisting templates: %w", err)
	}
	s.logger.Debug("face encodings saved", "backend", s.persister.Name(), "users", len(snap))
	return nil
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

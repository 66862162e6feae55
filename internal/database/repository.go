package database

import (
	"context"

	"github.com/kozaktomas/face-auth/internal/facematch"
)

// SnapshotPersister stores complete template snapshots. Every Save replaces
// the previous snapshot entirely; there is no incremental log.
type SnapshotPersister interface {
	// Load returns the last saved snapshot, or an empty snapshot if none exists
	Load(ctx context.Context) (Snapshot, error)
	// Save overwrites durable storage with the given snapshot
	Save(ctx context.Context, snapshot Snapshot) error
	// Name identifies the backend in logs
	Name() string
}

// TemplateReader provides read-only access to stored face templates
type TemplateReader interface {
	// Get returns the embeddings stored for an identity, or ErrNotFound
	Get(identity string) ([]facematch.Embedding, error)
	// Count returns the number of enrolled identities
	Count() int
	// Users returns all enrolled identities in sorted order
	Users() []string
}

// TemplateWriter provides mutating access to stored face templates
type TemplateWriter interface {
	TemplateReader

	// Add appends an embedding, evicting the oldest beyond the retention limit.
	// Returns the identity's template count after the mutation and whether
	// the resulting snapshot was persisted.
	Add(ctx context.Context, identity string, embedding facematch.Embedding) (int, bool)
	// Delete removes an identity. Returns false if the identity was unknown.
	Delete(ctx context.Context, identity string) bool
}

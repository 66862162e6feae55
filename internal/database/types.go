package database

import (
	"maps"
	"slices"

	"github.com/kozaktomas/face-auth/internal/facematch"
)

// Snapshot is a complete identity -> embeddings mapping as written to durable storage.
// Embedding order is oldest first.
type Snapshot map[string][]facematch.Embedding

// Clone copies the mapping and the per-identity slices. Embedding values are
// shared because they are never modified after creation.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for id, embs := range s {
		out[id] = slices.Clone(embs)
	}
	return out
}

// Users returns the identities in sorted order.
func (s Snapshot) Users() []string {
	return slices.Sorted(maps.Keys(s))
}

// Embeddings returns the total number of stored embeddings.
func (s Snapshot) Embeddings() int {
	n := 0
	for _, embs := range s {
		n += len(embs)
	}
	return n
}

package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

// Ensure TemplateRepository implements SnapshotPersister interface at compile time
var _ database.SnapshotPersister = (*TemplateRepository)(nil)

// TemplateRepository stores template snapshots in the face_templates table.
type TemplateRepository struct {
	pool *Pool
}

// NewTemplateRepository creates a new PostgreSQL template repository
func NewTemplateRepository(pool *Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// Name implements database.SnapshotPersister.
func (r *TemplateRepository) Name() string {
	return "postgres"
}

// Load reads every stored embedding, oldest first within each user.
func (r *TemplateRepository) Load(ctx context.Context) (database.Snapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, embedding
		FROM face_templates
		ORDER BY user_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("query face templates: %w", err)
	}
	defer rows.Close()

	snap := make(database.Snapshot)
	for rows.Next() {
		var userID string
		var vec pgvector.Vector
		if err := rows.Scan(&userID, &vec); err != nil {
			return nil, fmt.Errorf("scan face template: %w", err)
		}
		snap[userID] = append(snap[userID], facematch.Embedding(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face templates: %w", err)
	}
	return snap, nil
}

// Save replaces the table contents with snapshot in a single transaction.
func (r *TemplateRepository) Save(ctx context.Context, snapshot database.Snapshot) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_templates"); err != nil {
		return fmt.Errorf("clear face templates: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO face_templates (user_id, position, embedding)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, userID := range snapshot.Users() {
		for pos, emb := range snapshot[userID] {
			if _, err := stmt.ExecContext(ctx, userID, pos, pgvector.NewVector(emb)); err != nil {
				return fmt.Errorf("insert face template %s/%d: %w", userID, pos, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit face templates: %w", err)
	}
	return nil
}

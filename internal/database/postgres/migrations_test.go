package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versions(ms []migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.version
	}
	return out
}

func TestLoadMigrations(t *testing.T) {
	all, err := loadMigrations()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"001_create_face_templates.sql",
		"002_create_face_templates_index.sql",
	}, versions(all))
	assert.Contains(t, all[0].sql, "CREATE TABLE IF NOT EXISTS face_templates")
}

func TestPendingMigrations(t *testing.T) {
	all, err := loadMigrations()
	require.NoError(t, err)

	assert.Equal(t, versions(all), versions(pendingMigrations(all, nil)))
	assert.Equal(t, []string{"002_create_face_templates_index.sql"},
		versions(pendingMigrations(all, []string{"001_create_face_templates.sql"})))
	assert.Empty(t, pendingMigrations(all, versions(all)))
	assert.Len(t, all, 2, "pendingMigrations must not modify its input")
}

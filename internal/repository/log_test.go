package repository

import (
	"path/filepath"
	"testing"
	"vmigrate/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	require.NoError(t, db.Init(filepath.Join(t.TempDir(), "test.db")))
}

func TestAppendAssignsDenseSequence(t *testing.T) {
	setupDB(t)
	repo := NewLogRepository()

	for i, msg := range []string{"one", "two", "three"} {
		line, err := repo.Append(5, msg)
		require.NoError(t, err)
		assert.Equal(t, i, line.Seq)
	}

	// A second job's sequence starts at 0 independently.
	line, err := repo.Append(6, "other job")
	require.NoError(t, err)
	assert.Equal(t, 0, line.Seq)
}

func TestReadAllOrderedBySeq(t *testing.T) {
	setupDB(t)
	repo := NewLogRepository()

	for _, msg := range []string{"a", "b", "c"} {
		_, err := repo.Append(1, msg)
		require.NoError(t, err)
	}

	lines, err := repo.ReadAll(1)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.Equal(t, i, line.Seq)
	}
	assert.Equal(t, "a", lines[0].Message)
	assert.Equal(t, "c", lines[2].Message)
}

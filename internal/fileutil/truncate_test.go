package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/scratch/internal/fileutil"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		size int64
	}{
		{"shrink", 3},
		{"empty", 0},
		{"extend", 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "f")
			require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

			require.NoError(t, fileutil.Truncate(path, tt.size))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, tt.size, info.Size())
		})
	}
}

func TestTruncate_ReportsPathAndSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing")
	err := fileutil.Truncate(path, 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), "42 bytes")
}

func TestPreallocate_KeepsSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	fileutil.Preallocate(f, 1<<16)
	fileutil.Preallocate(f, 0)

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "preallocation must not change the visible size")
}

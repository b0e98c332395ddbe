package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		file    string
		wantErr bool
	}{
		{"plain file", "fact_orders.csv", false},
		{"nested file", "marts/fact_orders.csv", false},
		{"escapes base", "../fact_orders.csv", true},
		{"sibling with shared prefix", "../" + filepath.Base(base) + "x/f.csv", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinPath(base, tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(base, tt.file), got)
		})
	}
}

func TestCleanPathRejectsEmpty(t *testing.T) {
	_, err := CleanPath("  ")
	assert.Error(t, err)

	got, err := CleanPath("data/../data/warehouse")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "warehouse", filepath.Base(got))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

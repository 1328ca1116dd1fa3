package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinDir(t *testing.T) {
	tmp := t.TempDir()
	root := filepath.Join(tmp, "recordings")
	outside := filepath.Join(tmp, "elsewhere")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run-a"), 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))
	require.NoError(t, os.Symlink(filepath.Join(root, "run-a"), filepath.Join(root, "alias")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"directory inside", filepath.Join(root, "run-a"), false},
		{"new file inside", filepath.Join(root, "run-a", "tracks.csv"), false},
		{"root itself", root, false},
		{"symlink staying inside", filepath.Join(root, "alias"), false},
		{"dot dot", filepath.Join(root, "..", "elsewhere"), true},
		{"symlink escaping", filepath.Join(root, "escape"), true},
		{"new file under escaping symlink", filepath.Join(root, "escape", "x.csv"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDir(tt.path, root)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideRoot)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Error(t, WithinDir(root, filepath.Join(tmp, "missing")))
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(file))
	assert.False(t, IsDir(filepath.Join(dir, "missing")))
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"run-a", "lat_lon_scatter"}, "run-a_lat_lon_scatter"},
		{[]string{"flight 7/2026", "north"}, "flight_7_2026_north"},
		{[]string{"../etc/passwd"}, "etc_passwd"},
		{[]string{"***"}, "unnamed"},
		{nil, "unnamed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeName(tt.parts...), "%q", tt.parts)
	}
}

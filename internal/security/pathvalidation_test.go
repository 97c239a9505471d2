package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	safe := t.TempDir()

	assert.NoError(t, ValidatePathWithinDirectory(filepath.Join(safe, "export.csv"), safe))
	assert.NoError(t, ValidatePathWithinDirectory(filepath.Join(safe, "sub", "export.csv"), safe))
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(safe, "..", "escape.csv"), safe))
	assert.Error(t, ValidatePathWithinDirectory("/etc/passwd", safe))
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	safe := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(safe, "link")
	require.NoError(t, os.Symlink(outside, link))

	err := ValidatePathWithinDirectory(filepath.Join(link, "newfile.csv"), safe)
	assert.Error(t, err)
}

func TestValidatePathSafeDirMustExist(t *testing.T) {
	err := ValidatePathWithinDirectory("a.csv", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", "unknown"},
		{"session-01.sqlite", "session-01.sqlite"},
		{"a b/c", "a_b_c"},
		{"../../etc", "etc"},
		{"___", "unknown"},
		{"rig #7 (front cam)", "rig_7_front_cam"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeFilename(tc.in), "input %q", tc.in)
	}
}

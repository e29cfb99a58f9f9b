package syncer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusionMatch(t *testing.T) {
	set, err := CompileExclusions([]string{"*.tmp", "node_modules", "logs/*.gz"}, "")
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"a.tmp", true},
		{"deep/nested/b.tmp", true},
		{"a.txt", false},
		{"node_modules", true},
		{"node_modules/pkg/index.js", true},
		{"src/node_modules/x.js", true},
		{"logs/app.gz", true},
		{"logs/app.log", false},
		{"other/logs/app.gz", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, set.Match(tt.path))
		})
	}
}

func TestExclusionFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excludes")
	require.NoError(t, os.WriteFile(path, []byte("# build output\n*.o\n\n.git\n"), 0o644))

	set, err := CompileExclusions([]string{"*.tmp"}, path)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Match("main.o"))
	assert.True(t, set.Match(".git/config"))
	assert.True(t, set.Match("x.tmp"))
	assert.False(t, set.Match("main.go"))
}

func TestExclusionFileMissing(t *testing.T) {
	_, err := CompileExclusions(nil, "/nonexistent/excludes")
	require.Error(t, err)
}

func TestExclusionInvalidPattern(t *testing.T) {
	_, err := CompileExclusions([]string{"[unclosed"}, "")
	require.Error(t, err)
}

func TestEmptyExclusionSet(t *testing.T) {
	set, err := CompileExclusions(nil, "")
	require.NoError(t, err)
	assert.False(t, set.Match("anything"))

	var nilSet *ExclusionSet
	assert.False(t, nilSet.Match("anything"))
	assert.Zero(t, nilSet.Len())
}

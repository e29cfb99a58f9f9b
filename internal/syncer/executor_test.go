package syncer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rediacc/desktop/internal/logger"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	require.NoError(t, err)
	return files
}

func noExcl(t *testing.T) *ExclusionSet {
	t.Helper()
	set, err := CompileExclusions(nil, "")
	require.NoError(t, err)
	return set
}

func TestExecuteLocalToLocal(t *testing.T) {
	srcRoot, dstRoot := t.TempDir(), t.TempDir()
	writeTree(t, srcRoot, map[string]string{
		"a.txt":       "alpha",
		"sub/b.txt":   "beta",
		"sub/deep/c":  "gamma",
		"ignored.tmp": "junk",
	})
	writeTree(t, dstRoot, map[string]string{
		"stale.txt": "old",
	})

	excl, err := CompileExclusions([]string{"*.tmp"}, "")
	require.NoError(t, err)

	plan, report, err := Run(Request{
		Source:     NewLocalEndpoint(srcRoot),
		Dest:       NewLocalEndpoint(dstRoot),
		Exclusions: excl,
		Mirror:     true,
	}, logger.Noop())
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.True(t, plan.HasDeletes())

	assert.Equal(t, map[string]string{
		"a.txt":      "alpha",
		"sub/b.txt":  "beta",
		"sub/deep/c": "gamma",
	}, readTree(t, dstRoot))
}

func TestExecutePreservesMtime(t *testing.T) {
	srcRoot, dstRoot := t.TempDir(), t.TempDir()
	writeTree(t, srcRoot, map[string]string{"a.txt": "alpha"})
	stamp := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(srcRoot, "a.txt"), stamp, stamp))

	_, report, err := Run(Request{
		Source:     NewLocalEndpoint(srcRoot),
		Dest:       NewLocalEndpoint(dstRoot),
		Exclusions: noExcl(t),
	}, logger.Noop())
	require.NoError(t, err)
	require.True(t, report.Success())

	info, err := os.Stat(filepath.Join(dstRoot, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, stamp.Unix(), info.ModTime().Unix())
}

func TestExecuteDryRunMutatesNothing(t *testing.T) {
	srcRoot, dstRoot := t.TempDir(), t.TempDir()
	writeTree(t, srcRoot, map[string]string{"a.txt": "alpha"})
	writeTree(t, dstRoot, map[string]string{"stale.txt": "old"})

	plan, report, err := Run(Request{
		Source:     NewLocalEndpoint(srcRoot),
		Dest:       NewLocalEndpoint(dstRoot),
		Exclusions: noExcl(t),
		Mirror:     true,
		DryRun:     true,
	}, logger.Noop())
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.True(t, report.Success())

	copies, _, deletes := plan.Changes()
	assert.Equal(t, 1, copies)
	assert.Equal(t, 1, deletes)

	// The destination is untouched.
	assert.Equal(t, map[string]string{"stale.txt": "old"}, readTree(t, dstRoot))
}

func TestExecuteSecondPassAllSkips(t *testing.T) {
	srcRoot, dstRoot := t.TempDir(), t.TempDir()
	writeTree(t, srcRoot, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"})

	req := Request{
		Source:     NewLocalEndpoint(srcRoot),
		Dest:       NewLocalEndpoint(dstRoot),
		Exclusions: noExcl(t),
		Mirror:     true,
	}
	_, report, err := Run(req, logger.Noop())
	require.NoError(t, err)
	require.True(t, report.Success())

	plan, err := PlanOnly(req)
	require.NoError(t, err)
	copies, updates, deletes := plan.Changes()
	assert.Zero(t, copies+updates+deletes, "an unchanged tree plans to pure skips")
}

func TestExecuteVerify(t *testing.T) {
	srcRoot, dstRoot := t.TempDir(), t.TempDir()
	writeTree(t, srcRoot, map[string]string{"a.txt": "alpha"})

	_, report, err := Run(Request{
		Source:     NewLocalEndpoint(srcRoot),
		Dest:       NewLocalEndpoint(dstRoot),
		Exclusions: noExcl(t),
		Verify:     true,
	}, logger.Noop())
	require.NoError(t, err)
	assert.True(t, report.Success())
}

func TestExecuteContinuesPastFailures(t *testing.T) {
	srcRoot, dstRoot := t.TempDir(), t.TempDir()
	writeTree(t, srcRoot, map[string]string{"a.txt": "alpha", "b.txt": "beta"})

	src := NewLocalEndpoint(srcRoot)
	entries, err := src.List(noExcl(t))
	require.NoError(t, err)

	// One entry points at a file that vanished between listing and
	// execution.
	plan := &Plan{Ops: []Operation{
		{Kind: OpCopy, Entry: Entry{RelPath: "ghost.txt", Kind: KindFile, Size: 1}},
		{Kind: OpCopy, Entry: entries[0]},
		{Kind: OpCopy, Entry: entries[1]},
	}}

	report := NewExecutor(src, NewLocalEndpoint(dstRoot), logger.Noop()).Execute(plan, ExecOptions{})
	assert.False(t, report.Success())
	require.Len(t, report.Failures(), 1)
	assert.Equal(t, "ghost.txt", report.Failures()[0].Op.Entry.RelPath)

	// The other two still transferred.
	assert.Len(t, readTree(t, dstRoot), 2)
}

func TestLocalChecksum(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "alpha"})

	sum, err := NewLocalEndpoint(root).Checksum("a.txt")
	require.NoError(t, err)
	// sha256("alpha")
	assert.Equal(t, "8ed3f6ad685b959ead7022518e1af76cd816f8e8ec7ccdda1ed4018e8f2223f8", sum)
}

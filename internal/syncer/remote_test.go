package syncer

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sshmock "github.com/rediacc/desktop/pkg/sshutil/testing"
)

func TestRemoteList(t *testing.T) {
	mock := sshmock.NewMockClient("web-1")
	mock.On("if [ -d '/data/repo' ]", sshmock.Result{
		Stdout: "d\t4096\t1740830400.0000000000\tsub\n" +
			"f\t10\t1740830400.5000000000\tsub/a.txt\n" +
			"f\t20\t1740834000.0000000000\tskip.tmp\n" +
			"l\t7\t1740830400.0000000000\tlink\n",
	})

	excl, err := CompileExclusions([]string{"*.tmp"}, "")
	require.NoError(t, err)

	entries, err := NewRemoteEndpoint(mock, "/data/repo").List(excl)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "link", entries[0].RelPath)
	assert.Equal(t, KindSymlink, entries[0].Kind)

	assert.Equal(t, "sub", entries[1].RelPath)
	assert.Equal(t, KindDir, entries[1].Kind)
	assert.Equal(t, int64(-1), entries[1].Size)

	assert.Equal(t, "sub/a.txt", entries[2].RelPath)
	assert.Equal(t, KindFile, entries[2].Kind)
	assert.Equal(t, int64(10), entries[2].Size)
	assert.Equal(t, time.Unix(1740830400, 0), entries[2].Mtime)
}

func TestRemoteListMissingDir(t *testing.T) {
	mock := sshmock.NewMockClient("web-1")
	mock.On("if [ -d ", sshmock.Result{Stdout: ""})

	entries, err := NewRemoteEndpoint(mock, "/nope").List(nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoteWriteQuotesAndSetsMtime(t *testing.T) {
	mock := sshmock.NewMockClient("web-1")
	prefix := "mkdir -p '/data/it'\\''s here' && cat > '/data/it'\\''s here/a.txt'"
	mock.On(prefix, sshmock.Result{})

	endpoint := NewRemoteEndpoint(mock, "/data/it's here")
	err := endpoint.Write("a.txt", strings.NewReader("alpha"), time.Unix(1740830400, 0))
	require.NoError(t, err)

	assert.Equal(t, "alpha", mock.Stdin[prefix])
	require.Len(t, mock.Calls(), 1)
	assert.Contains(t, mock.Calls()[0], "touch -m -d @1740830400")
}

func TestRemoteOpen(t *testing.T) {
	mock := sshmock.NewMockClient("web-1")
	mock.On("cat '/data/repo/a.txt'", sshmock.Result{Stdout: "alpha"})

	rc, err := NewRemoteEndpoint(mock, "/data/repo").Open("a.txt")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "alpha", string(content))
}

func TestRemoteOpenFailure(t *testing.T) {
	mock := sshmock.NewMockClient("web-1")
	mock.On("cat ", sshmock.Result{Stderr: "cat: no such file", ExitCode: 1})

	rc, err := NewRemoteEndpoint(mock, "/data/repo").Open("ghost")
	require.NoError(t, err)
	_, err = io.ReadAll(rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
}

func TestRemoteChecksum(t *testing.T) {
	mock := sshmock.NewMockClient("web-1")
	mock.On("sha256sum ", sshmock.Result{Stdout: "deadbeef  /data/repo/a.txt\n"})

	sum, err := NewRemoteEndpoint(mock, "/data/repo").Checksum("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", sum)
}

func TestRemoteRemove(t *testing.T) {
	mock := sshmock.NewMockClient("web-1")
	mock.On("rm -f ", sshmock.Result{})
	mock.On("rmdir ", sshmock.Result{})

	endpoint := NewRemoteEndpoint(mock, "/data/repo")
	require.NoError(t, endpoint.Remove("a.txt", KindFile))
	require.NoError(t, endpoint.Remove("sub", KindDir))

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "rm -f '/data/repo/a.txt'", calls[0])
	assert.Equal(t, "rmdir '/data/repo/sub'", calls[1])
}

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the watch loop and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_RecompilesOnSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tale.md")
	require.NoError(t, os.WriteFile(path, []byte("[Scene: A]\nfirst\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stdout := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs([]string{"--db", tempDB(t), "watch", path})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "✓ tale (revision 1)")
	}, 10*time.Second, 20*time.Millisecond)

	// Replace the file the way editors do, so one event carries the whole text.
	tmp := filepath.Join(dir, ".tale.md.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("[Scene: A]\nsecond\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))
	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "changed=1")
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	_, err := execute(t, tempDB(t), "watch", "testdata/nope.md")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWatch_SameBaseNameInTwoDirectories(t *testing.T) {
	a := filepath.Join(t.TempDir(), "tale.md")
	b := filepath.Join(t.TempDir(), "tale.md")
	require.NoError(t, os.WriteFile(a, []byte("[Scene: A]\nfirst\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("[Scene: B]\nsecond\n"), 0o644))

	_, err := execute(t, tempDB(t), "watch", a, b)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckDocumentNames(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, checkDocumentNames([]string{filepath.Join(dir, "a.md"), filepath.Join(dir, "b.md")}))
	assert.NoError(t, checkDocumentNames([]string{filepath.Join(dir, "a.md"), filepath.Join(dir, "a.md")}))

	err := checkDocumentNames([]string{filepath.Join(dir, "a.md"), filepath.Join(dir, "a.txt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `both map to document "a"`)
}

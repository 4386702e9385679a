package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-refresher/internal/dashboard/core/domain"
)

func TestStore_ReadTemplate(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.html")
	require.NoError(t, os.WriteFile(tmpl, []byte("<p>/*__USER_DATA__*/{}</p>"), 0o644))

	got, err := NewStore(tmpl, filepath.Join(dir, "out.html"), nil).ReadTemplate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<p>/*__USER_DATA__*/{}</p>", got)
}

func TestStore_ReadTemplate_Missing(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "nope.html"), "out.html", nil).ReadTemplate(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoTemplate)
}

func TestStore_WriteOutput_Atomic(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "public", "index.html")
	s := NewStore(filepath.Join(dir, "t.html"), out, nil)

	require.NoError(t, s.WriteOutput(context.Background(), "first"))
	require.NoError(t, s.WriteOutput(context.Background(), "second"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files must be cleaned up")
	}
}

func TestStore_WriteOutput_LockBusy(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "index.html")

	held := flock.New(out + ".lock")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = NewStore("t.html", out, nil).WriteOutput(ctx, "x")
	require.Error(t, err)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "nothing must be written without the lock")
}

func TestStore_Watch(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.html")
	require.NoError(t, os.WriteFile(tmpl, []byte("v1"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	s := NewStore(tmpl, filepath.Join(dir, "out.html"), nil)
	require.NoError(t, s.Watch(ctx, func(context.Context) { changed <- struct{}{} }))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(tmpl, []byte("v2"), 0o644))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatalf("expected a template change notification")
	}
}

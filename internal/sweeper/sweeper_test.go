package sweeper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeScratch(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(path, 0o750))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestSweepRemovesOnlyStaleDirs(t *testing.T) {
	root := t.TempDir()
	stale := makeScratch(t, root, "build-aaaa", 2*time.Hour)
	fresh := makeScratch(t, root, "build-bbbb", time.Minute)
	unrelated := makeScratch(t, root, "other-dir", 2*time.Hour)

	s, err := New(root, time.Hour, time.Hour, nil)
	require.NoError(t, err)
	s.Sweep(t.Context())

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale scratch dir must be removed")
	_, err = os.Stat(fresh)
	assert.NoError(t, err, "fresh scratch dir must survive")
	_, err = os.Stat(unrelated)
	assert.NoError(t, err, "non-scratch dirs are never touched")
}

func TestSweepSkipsInFlightFingerprints(t *testing.T) {
	root := t.TempDir()
	running := makeScratch(t, root, "build-cccc", 2*time.Hour)

	s, err := New(root, time.Hour, time.Hour, func(fp string) bool { return fp == "cccc" })
	require.NoError(t, err)
	s.Sweep(t.Context())

	_, err = os.Stat(running)
	assert.NoError(t, err, "in-flight scratch dir must never be swept")
}

func TestSweepMissingRootIsNoop(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "missing"), time.Hour, time.Hour, nil)
	require.NoError(t, err)
	s.Sweep(t.Context())
}

func TestSetRetention(t *testing.T) {
	s, err := New(t.TempDir(), time.Hour, time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.Retention())
	s.SetRetention(30 * time.Minute)
	assert.Equal(t, 30*time.Minute, s.Retention())
}

package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/fontbuilder/internal/font"
)

func TestFingerprintStability(t *testing.T) {
	cfg := &font.Config{Name: "icons", Glyphs: []string{"a", "b", "c"}}

	fp1, err := Fingerprint("v3", cfg)
	require.NoError(t, err)
	fp2, err := Fingerprint("v3", &font.Config{Name: "icons", Glyphs: []string{"a", "b", "c"}})
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "equal configs must fingerprint identically")
	assert.Len(t, fp1, 64)
}

func TestFingerprintToolVersionBusting(t *testing.T) {
	cfg := &font.Config{Name: "icons", Glyphs: []string{"a", "b", "c"}}

	fp3, err := Fingerprint("v3", cfg)
	require.NoError(t, err)
	fp4, err := Fingerprint("v4", cfg)
	require.NoError(t, err)

	assert.NotEqual(t, fp3, fp4, "tool version change must invalidate fingerprints")
}

func TestFingerprintDistinguishesConfigs(t *testing.T) {
	fp1, err := Fingerprint("v3", &font.Config{Name: "icons", Glyphs: []string{"a"}})
	require.NoError(t, err)
	fp2, err := Fingerprint("v3", &font.Config{Name: "icons", Glyphs: []string{"b"}})
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)
}

func TestFingerprintNilConfig(t *testing.T) {
	_, err := Fingerprint("v3", nil)
	assert.Error(t, err)
}

func TestLocateSharding(t *testing.T) {
	cfg := &font.Config{Name: "icons", Glyphs: []string{"a", "b", "c"}}
	fp, err := Fingerprint("v3", cfg)
	require.NoError(t, err)

	rel := Locate(fp)
	assert.Equal(t, filepath.Join(fp[0:2], fp[2:4], fp+".zip"), rel)

	abs := OutputPath("/var/lib/fontbuilder/artifacts", fp)
	assert.Equal(t, filepath.Join("/var/lib/fontbuilder/artifacts", rel), abs)
}

func TestScratchDirIsPerFingerprint(t *testing.T) {
	a := ScratchDir("/tmp/scratch", "aaaa")
	b := ScratchDir("/tmp/scratch", "bbbb")
	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Join("/tmp/scratch", "build-aaaa"), a)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "artifact.zip")
	ok, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("zip"), 0o600))
	ok, err = Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}

package font

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/fontbuilder/internal/errors"
)

func TestNormalizeSortsAndDeduplicates(t *testing.T) {
	n := &GlyphNormalizer{}

	cfg, err := n.Normalize(context.Background(), Request{
		Name:   "icons",
		Glyphs: []string{"arrow-up", "check", "arrow-up", " check ", "alert"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"alert", "arrow-up", "check"}, cfg.Glyphs)
	assert.Equal(t, "icons", cfg.Name)
}

func TestNormalizeEquivalentRequestsProduceIdenticalJSON(t *testing.T) {
	n := &GlyphNormalizer{}

	a, err := n.Normalize(context.Background(), Request{
		Glyphs:  []string{"b", "a", "c"},
		Options: map[string]string{"weight": "400", "format": "woff2"},
	})
	require.NoError(t, err)

	b, err := n.Normalize(context.Background(), Request{
		Glyphs:  []string{"c", "c", "a", "b"},
		Options: map[string]string{"format": "woff2", "weight": "400"},
	})
	require.NoError(t, err)

	aj, err := a.CanonicalJSON()
	require.NoError(t, err)
	bj, err := b.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, string(aj), string(bj))
}

func TestNormalizeEmptySelection(t *testing.T) {
	n := &GlyphNormalizer{}

	tests := []struct {
		name string
		req  Request
	}{
		{"no glyphs", Request{Name: "icons"}},
		{"whitespace only", Request{Glyphs: []string{"  ", ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestNormalizeFontNameDefaults(t *testing.T) {
	ctx := context.Background()

	cfg, err := (&GlyphNormalizer{}).Normalize(ctx, Request{Glyphs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, DefaultFontName, cfg.Name)

	cfg, err = (&GlyphNormalizer{DefaultName: "corp-icons"}).Normalize(ctx, Request{Glyphs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "corp-icons", cfg.Name)

	cfg, err = (&GlyphNormalizer{DefaultName: "corp-icons"}).Normalize(ctx, Request{Name: "  custom  ", Glyphs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Name)
}

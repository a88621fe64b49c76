package font

import (
	"context"
	"sort"
	"strings"

	"git.home.luguber.info/inful/fontbuilder/internal/errors"
)

// DefaultFontName is used when the request does not name the font.
const DefaultFontName = "fontbuilder"

// Normalizer turns a raw request into a deterministic build configuration.
// Implementations must be deterministic for semantically equal input.
type Normalizer interface {
	Normalize(ctx context.Context, req Request) (*Config, error)
}

// GlyphNormalizer is the default Normalizer: it trims, deduplicates and sorts
// the glyph selection and applies the font name default.
type GlyphNormalizer struct {
	// DefaultName overrides DefaultFontName when set.
	DefaultName string
}

// Normalize implements Normalizer.
func (n *GlyphNormalizer) Normalize(_ context.Context, req Request) (*Config, error) {
	seen := make(map[string]struct{}, len(req.Glyphs))
	glyphs := make([]string, 0, len(req.Glyphs))
	for _, g := range req.Glyphs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		glyphs = append(glyphs, g)
	}
	if len(glyphs) == 0 {
		return nil, errors.InvalidRequest("no glyphs selected")
	}
	sort.Strings(glyphs)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = n.DefaultName
	}
	if name == "" {
		name = DefaultFontName
	}

	var options map[string]string
	if len(req.Options) > 0 {
		options = make(map[string]string, len(req.Options))
		for k, v := range req.Options {
			options[k] = v
		}
	}

	return &Config{Name: name, Glyphs: glyphs, Options: options}, nil
}

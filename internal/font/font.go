// Package font defines the client-facing request shape and the normalized
// build configuration that the scheduler fingerprints. Normalization itself is
// a collaborator boundary: the scheduler only depends on the Normalizer
// interface.
package font

import (
	"encoding/json"
	"fmt"
)

// Request is the raw client request for a font artifact. The scheduler treats
// it as opaque beyond being serializable; it is persisted verbatim into the
// task's scratch directory for the generator.
type Request struct {
	Name    string            `json:"name,omitempty"`
	Glyphs  []string          `json:"glyphs"`
	Options map[string]string `json:"options,omitempty"`
}

// Config is the normalized build configuration. Semantically identical
// requests must normalize to byte-identical serializations: the glyph list is
// sorted and deduplicated by the normalizer, and option keys serialize in
// sorted order (encoding/json emits map keys sorted).
type Config struct {
	Name    string            `json:"name"`
	Glyphs  []string          `json:"glyphs"`
	Options map[string]string `json:"options,omitempty"`
}

// CanonicalJSON returns the deterministic serialization of the config used
// for fingerprinting and for the config file handed to the generator.
func (c *Config) CanonicalJSON() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

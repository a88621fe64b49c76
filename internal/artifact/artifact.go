// Package artifact derives deterministic identifiers and on-disk locations
// for generated font archives. Fingerprints are content-derived: the same
// normalized configuration under the same tool version always maps to the
// same fingerprint, output path, and scratch directory.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/fontbuilder/internal/errors"
	"git.home.luguber.info/inful/fontbuilder/internal/font"
)

// Ext is the file extension of generated artifacts.
const Ext = ".zip"

// scratchPrefix namespaces per-task scratch directories under the scratch root.
const scratchPrefix = "build-"

// Fingerprint computes the hex digest identifying a build configuration under
// a given tool version. Bumping the tool version invalidates all prior
// fingerprints, which is the cache-busting mechanism on generator upgrades.
func Fingerprint(toolVersion string, cfg *font.Config) (string, error) {
	if cfg == nil {
		return "", errors.InvalidRequest("nil config")
	}

	payload := struct {
		Tool   string       `json:"tool"`
		Config *font.Config `json:"config"`
	}{
		Tool:   toolVersion,
		Config: cfg,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.InvalidRequestWrap(fmt.Errorf("failed to marshal config: %w", err))
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Locate maps a fingerprint to its relative sharded output path,
// xx/yy/<fingerprint>.zip. Two directory levels keep fan-out bounded.
func Locate(fingerprint string) string {
	return filepath.Join(fingerprint[0:2], fingerprint[2:4], fingerprint+Ext)
}

// OutputPath returns the absolute final artifact path under the output root.
func OutputPath(outputRoot, fingerprint string) string {
	return filepath.Join(outputRoot, Locate(fingerprint))
}

// ScratchDir returns the private per-task working directory for a fingerprint.
func ScratchDir(scratchRoot, fingerprint string) string {
	return filepath.Join(scratchRoot, scratchPrefix+fingerprint)
}

// Exists reports whether the final artifact is present on disk. It must only
// be consulted when no in-flight task holds the fingerprint: the final path
// is written atomically by the generator, the scratch directory never is.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.ProbeError(path, err)
}

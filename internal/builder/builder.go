// Package builder executes a single font generation task: it prepares an
// isolated scratch directory, persists the request and normalized config for
// the external generator, invokes the generator binary, and cleans up.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/fontbuilder/internal/errors"
	"git.home.luguber.info/inful/fontbuilder/internal/logfields"
	"git.home.luguber.info/inful/fontbuilder/internal/task"
)

const (
	requestFileName = "request.json"
	configFileName  = "config.json"
)

// Builder runs tasks against an external generator binary. It implements
// queue.Runner.
type Builder struct {
	// GeneratorPath is the generator executable invoked per task.
	GeneratorPath string

	// WorkDir is the fixed working directory for generator subprocesses.
	WorkDir string
}

// New creates a Builder for the given generator binary.
func New(generatorPath, workDir string) *Builder {
	return &Builder{GeneratorPath: generatorPath, WorkDir: workDir}
}

// Run executes one task to completion. Each step short-circuits the rest on
// failure; the scratch directory is kept on failure for post-mortem
// inspection and removed only after a successful run.
func (b *Builder) Run(_ context.Context, t *task.Task) error {
	start := time.Now()

	if err := b.prepareScratch(t); err != nil {
		return b.fail(t, start, err)
	}
	if err := b.writeInputs(t); err != nil {
		return b.fail(t, start, err)
	}
	if err := b.invokeGenerator(t); err != nil {
		return b.fail(t, start, err)
	}

	// Success: the scratch directory has served its purpose.
	if err := os.RemoveAll(t.ScratchDir); err != nil {
		slog.Warn("Failed to remove scratch directory after successful build",
			logfields.Fingerprint(t.Fingerprint),
			logfields.Path(t.ScratchDir),
			logfields.Error(err))
	}

	slog.Info("Font generated",
		logfields.TaskID(t.ID),
		logfields.Fingerprint(t.Fingerprint),
		logfields.FontName(t.Config.Name),
		logfields.Glyphs(len(t.Config.Glyphs)),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())),
		logfields.Path(t.OutputPath))
	return nil
}

// prepareScratch removes any stale scratch directory left by a previous
// crashed attempt and creates a fresh one.
func (b *Builder) prepareScratch(t *task.Task) error {
	if err := os.RemoveAll(t.ScratchDir); err != nil {
		return errors.ScratchError("remove stale", err)
	}
	if err := os.MkdirAll(t.ScratchDir, 0o750); err != nil {
		return errors.ScratchError("create", err)
	}
	return nil
}

// writeInputs persists the original request and the normalized config into
// the scratch directory. Both files exist before the generator starts, so the
// subprocess always sees a fully-formed filesystem state.
func (b *Builder) writeInputs(t *task.Task) error {
	reqData, err := json.MarshalIndent(t.Request, "", "  ")
	if err != nil {
		return errors.ScratchError("marshal request", err)
	}
	if err := os.WriteFile(filepath.Join(t.ScratchDir, requestFileName), reqData, 0o640); err != nil {
		return errors.ScratchError("write request", err)
	}

	cfgData, err := t.Config.CanonicalJSON()
	if err != nil {
		return errors.ScratchError("marshal config", err)
	}
	if err := os.WriteFile(filepath.Join(t.ScratchDir, configFileName), cfgData, 0o640); err != nil {
		return errors.ScratchError("write config", err)
	}
	return nil
}

// invokeGenerator runs the external generator. The generator contract is
// `generator <fontname> <scratchDir> <finalOutputPath>`; it must write the
// artifact to the final path atomically and exit 0 on success.
func (b *Builder) invokeGenerator(t *task.Task) error {
	if err := os.MkdirAll(filepath.Dir(t.OutputPath), 0o750); err != nil {
		return errors.ScratchError("create output directory", err)
	}

	cmd := exec.Command(b.GeneratorPath, t.Config.Name, t.ScratchDir, t.OutputPath)
	cmd.Dir = b.WorkDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			slog.Debug("Generator output", logfields.Fingerprint(t.Fingerprint), "output", string(output))
		}
		return errors.GeneratorFailed(t.Fingerprint, fmt.Errorf("%s %s: %w", b.GeneratorPath, t.Config.Name, err))
	}
	return nil
}

// fail logs the fingerprint-scoped failure with elapsed time before
// propagating. The scratch directory is intentionally left in place.
func (b *Builder) fail(t *task.Task, start time.Time, err error) error {
	slog.Error("Font generation failed",
		logfields.TaskID(t.ID),
		logfields.Fingerprint(t.Fingerprint),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())),
		logfields.Path(t.ScratchDir),
		logfields.Error(err))
	return err
}

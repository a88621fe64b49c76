package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyFingerprint = "fingerprint"
	KeyTaskID      = "task_id"
	KeyTaskStatus  = "task_status"
	KeyWorker      = "worker"
	KeyDurationMS  = "duration_ms"
	KeyPath        = "path"
	KeyFontName    = "font_name"
	KeyGlyphs      = "glyphs"
	KeyWaiters     = "waiters"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Fingerprint(fp string) slog.Attr  { return slog.String(KeyFingerprint, fp) }
func TaskID(id string) slog.Attr       { return slog.String(KeyTaskID, id) }
func TaskStatus(s string) slog.Attr    { return slog.String(KeyTaskStatus, s) }
func Worker(id string) slog.Attr       { return slog.String(KeyWorker, id) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func FontName(n string) slog.Attr      { return slog.String(KeyFontName, n) }
func Glyphs(n int) slog.Attr           { return slog.Int(KeyGlyphs, n) }
func Waiters(n int) slog.Attr          { return slog.Int(KeyWaiters, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

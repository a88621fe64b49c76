package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Fingerprint", KeyFingerprint, "ab12", Fingerprint("ab12")},
		{"TaskID", KeyTaskID, "t1", TaskID("t1")},
		{"TaskStatus", KeyTaskStatus, "queued", TaskStatus("queued")},
		{"Worker", KeyWorker, "worker-0", Worker("worker-0")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"FontName", KeyFontName, "icons", FontName("icons")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestErrorField(t *testing.T) {
	if got := Error(nil).Value.String(); got != "" {
		t.Fatalf("expected empty value for nil error, got %q", got)
	}
	if got := Error(errors.New("boom")).Value.String(); got != "boom" {
		t.Fatalf("expected boom, got %q", got)
	}
}

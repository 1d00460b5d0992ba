package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMirrorCounts(t *testing.T) {
	m := NewMirrorMetrics()
	at := time.Unix(1700000000, 0)

	m.RecordMirror("MARLIN_F4x7Vx", 3, 1, 2048, 150*time.Millisecond, true, at)
	m.RecordMirror("MARLIN_F4x7Vx", 0, 4, 0, 10*time.Millisecond, true, at.Add(time.Minute))

	if got := testutil.ToFloat64(m.files.WithLabelValues("MARLIN_F4x7Vx", "copied")); got != 3 {
		t.Fatalf("unexpected copied count: %v", got)
	}
	if got := testutil.ToFloat64(m.files.WithLabelValues("MARLIN_F4x7Vx", "skipped")); got != 5 {
		t.Fatalf("unexpected skipped count: %v", got)
	}
	if got := testutil.ToFloat64(m.bytesCopied.WithLabelValues("MARLIN_F4x7Vx")); got != 2048 {
		t.Fatalf("unexpected bytes: %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("MARLIN_F4x7Vx")); got != float64(at.Add(time.Minute).Unix()) {
		t.Fatalf("unexpected last success: %v", got)
	}
}

func TestRecordMirrorFailureKeepsLastSuccess(t *testing.T) {
	m := NewMirrorMetrics()
	m.RecordMirror("MARLIN_F4x7Vx", 1, 0, 10, time.Millisecond, false, time.Unix(1700000000, 0))

	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("MARLIN_F4x7Vx")); got != 0 {
		t.Fatalf("failure should not set last success: %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := NewMirrorMetrics()
	m.RecordMirror("MARLIN_F4x7Vx", 2, 0, 64, time.Second, true, time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "textfile", "variantctl.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		`variantctl_mirror_files_total{result="copied",variant="MARLIN_F4x7Vx"} 2`,
		`variantctl_mirror_bytes_copied_total{variant="MARLIN_F4x7Vx"} 64`,
		`variantctl_mirror_duration_seconds{variant="MARLIN_F4x7Vx"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("textfile missing %q:\n%s", want, out)
		}
	}
}

package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/turntable/internal/system"
)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.yaml")
	in := &Report{
		Version:          "dev",
		Model:            "input/models/board.wrl",
		Output:           "output/board.webm",
		Format:           "webm",
		Speed:            5,
		Direction:        "right",
		Frames:           377,
		Rotation:         4.71,
		SimulatedSeconds: 6.28,
		Stats:            &system.Stats{EffectiveFPS: 30},
	}
	if err := Write(in, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "simulatedSeconds: 6.28") {
		t.Errorf("unexpected yaml:\n%s", data)
	}
	if strings.Contains(string(data), "error:") {
		t.Errorf("empty error should be omitted:\n%s", data)
	}

	out, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Frames != 377 || out.Direction != "right" || out.Stats == nil || out.Stats.EffectiveFPS != 30 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestReadMissing(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error")
	}
}

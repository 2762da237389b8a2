package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLoggerWritesLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	l, flush := NewFile(path, "CLIENT")
	l.Info("joined as alice")
	l.Warning("connection slow")
	l.Error("connection lost")
	flush()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	out := string(data)
	for _, want := range []string{"INFO", "WARN", "ERROR", "CLIENT", "joined as alice", "connection lost"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log file missing %q:\n%s", want, out)
		}
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Info("x")
	l.Warning("x")
	l.Error("x")
}

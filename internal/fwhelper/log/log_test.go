package log

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupAndRecoverPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fwhelper.log")
	Setup(path, true)
	if !Initialized() {
		t.Fatal("Setup did not initialize")
	}
	// Setup runs once.
	Setup("", false)

	slog.Debug("Routed through slog", "site", "CODE:0003")

	cleaned := false
	func() {
		defer RecoverPanic("test", func() { cleaned = true })
		panic("boom")
	}()
	if !cleaned {
		t.Error("cleanup not called after panic")
	}

	if err := Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"Routed through slog", "Panic in test", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log file missing %q:\n%s", want, out)
		}
	}
}

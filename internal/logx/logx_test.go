package logx

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestForReturnsSameLogger(t *testing.T) {
	a := For(Downloader)
	b := For(Downloader)
	if a != b {
		t.Fatal("expected the same logger instance per component")
	}
}

func TestSetLevelAppliesToExistingLoggers(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	l := For(Cipher)
	SetLevel(log.ErrorLevel)
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info message logged at error level: %q", buf.String())
	}

	SetLevel(log.DebugLevel)
	l.Info("visible", "k", "v")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
}

package sanitize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestToSafeFilename_Basics(t *testing.T) {
	got := ToSafeFilename("Hello:/\\*?\"<>| World", "mp4")
	if got != "Hello_ World.mp4" {
		t.Fatalf("got %q", got)
	}
}

func TestToSafeFilename_Defaults(t *testing.T) {
	got := ToSafeFilename("", "")
	if got != "video.mp4" {
		t.Fatalf("got %q", got)
	}
}

func TestToSafeFilename_CollapsesWhitespace(t *testing.T) {
	got := ToSafeFilename("too   many\tspaces", "webm")
	if got != "too many spaces.webm" {
		t.Fatalf("got %q", got)
	}
}

func TestToSafeFilename_Long(t *testing.T) {
	title := "a"
	for len(title) < 200 {
		title += "a"
	}
	got := ToSafeFilename(title, "mp4")
	if len(got) > MaxFilenameLength+len(".mp4") {
		t.Fatalf("too long: %d", len(got))
	}
}

func TestToSafeFilename_LongMultiByte(t *testing.T) {
	// 1 ASCII byte followed by 3-byte runes puts the byte cap mid-rune.
	title := "a" + strings.Repeat("日", 60)
	got := ToSafeFilename(title, "mp4")
	base := strings.TrimSuffix(got, ".mp4")
	if !utf8.ValidString(base) {
		t.Fatalf("truncated name is not valid UTF-8: %q", base)
	}
	if len(base) > MaxFilenameLength {
		t.Fatalf("too long: %d", len(base))
	}
	want := "a" + strings.Repeat("日", 39)
	if base != want {
		t.Fatalf("got %q, want %q", base, want)
	}
}

func TestEnsureUnique(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")

	if got := EnsureUnique(path); got != path {
		t.Fatalf("free path changed: %q", got)
	}

	for _, name := range []string{"clip.mp4", "clip_1.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	want := filepath.Join(dir, "clip_2.mp4")
	if got := EnsureUnique(path); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

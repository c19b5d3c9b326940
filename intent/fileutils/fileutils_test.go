package fileutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteJSONFileAtomic(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.json")
	payload := map[string]string{"intent": "show -> click <submit>"}

	if err := WriteJSONFileAtomic(path, payload, true); err != nil {
		t.Fatalf("WriteJSONFileAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"intent": "show -> click <submit>"`) {
		t.Fatalf("unexpected content:\n%s", text)
	}
	if !strings.HasSuffix(text, "\n") {
		t.Fatal("file must end with a newline")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("directory has %d entries, want 1", len(entries))
	}
}

func TestWriteJSONFileAtomicOverwrites(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSONFileAtomic(path, map[string]int{"v": 1}, false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteJSONFileAtomic(path, map[string]int{"v": 2}, false); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"v":2`) {
		t.Fatalf("overwrite failed: %s", data)
	}
}

func TestFileExists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "x")
	if FileExists(path) {
		t.Fatal("missing file reported as existing")
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Fatal("existing file reported as missing")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("Truncate short = %q", got)
	}
	got := Truncate("hello world", 5)
	if len([]rune(got)) > 6 {
		t.Fatalf("Truncate long = %q", got)
	}
}

func TestSanitizeNewlines(t *testing.T) {
	t.Parallel()
	if got := SanitizeNewlines("a\r\nb\rc"); got != `a\nb\nc` {
		t.Fatalf("SanitizeNewlines = %q", got)
	}
}

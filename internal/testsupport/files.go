package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"qupload/internal/queue"
)

// WriteFile fills the target path with size bytes of a repeating 'q' pattern.
// A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	payload := bytes.Repeat([]byte{'q'}, int(size))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Stimulus writes a payload file under the test's temp directory and returns
// a FileRef describing it.
func Stimulus(t testing.TB, name, mime string, size int64) queue.FileRef {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	WriteFile(t, path, size)
	return queue.FileRef{Name: name, Path: path, Size: size, MIME: mime}
}

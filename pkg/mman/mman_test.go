package mman

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTestFile creates a file of n bytes in t.TempDir(), all zero except
// the last byte which is 0xEE, matching the concrete scenario fixture
// described for "F" in the scenario table.
func writeTestFile(t testing.TB, n int) string {
	t.Helper()
	data := make([]byte, n)
	if n > 0 {
		data[n-1] = 0xEE
	}
	path := filepath.Join(t.TempDir(), "F")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

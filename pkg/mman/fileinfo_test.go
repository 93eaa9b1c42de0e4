package mman

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFileInfo(t *testing.T) {
	path := writeTestFile(t, 20)

	fi, err := openFileInfo(path)
	if err != nil {
		t.Fatalf("openFileInfo: %v", err)
	}
	defer fi.close()

	if fi.size != 20 {
		t.Fatalf("size = %d, want 20", fi.size)
	}
	if !filepath.IsAbs(fi.path) {
		t.Fatalf("path %q is not canonicalized to absolute", fi.path)
	}
}

func TestOpenFileInfo_EmptyFile(t *testing.T) {
	path := writeTestFile(t, 0)

	if _, err := openFileInfo(path); !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestOpenFileInfo_NotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")

	if _, err := openFileInfo(path); !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

func TestOpenFileInfo_NotRegular(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := openFileInfo(sub); !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

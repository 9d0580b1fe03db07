package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunArgs(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	if err := run(nil); err == nil {
		t.Fatal("expected error without a token")
	}
	if err := run([]string{"-format", "gif", "abc123"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if err := run([]string{"-engine", "nope", "abc123"}); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc123_resume.pdf")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(path, []byte("%PDF-1.4")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "%PDF-1.4" {
		t.Fatalf("file = %q, %v", got, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("leftover temp files: %v", entries)
	}
}

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("creates file with correct content", func(t *testing.T) {
		path := filepath.Join(tmpDir, "report.md")
		content := []byte("# PROJ-1\n")

		if err := AtomicWriteFile(path, content, 0644); err != nil {
			t.Fatalf("AtomicWriteFile failed: %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("content mismatch: got %q, want %q", string(got), string(content))
		}
	})

	t.Run("applies requested permissions", func(t *testing.T) {
		path := filepath.Join(tmpDir, "private.txt")
		if err := AtomicWriteFile(path, []byte("secret"), 0600); err != nil {
			t.Fatalf("AtomicWriteFile failed: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat file: %v", err)
		}
		if mode := info.Mode().Perm(); mode&0600 != 0600 {
			t.Errorf("expected owner read/write, got %o", mode)
		}
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		path := filepath.Join(tmpDir, "overwrite.txt")
		if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
			t.Fatalf("first write failed: %v", err)
		}
		if err := AtomicWriteFile(path, []byte("updated content"), 0644); err != nil {
			t.Fatalf("second write failed: %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if string(got) != "updated content" {
			t.Errorf("content mismatch: got %q", string(got))
		}
	})

	t.Run("handles empty content", func(t *testing.T) {
		path := filepath.Join(tmpDir, "empty.txt")
		if err := AtomicWriteFile(path, []byte{}, 0644); err != nil {
			t.Fatalf("AtomicWriteFile failed: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat file: %v", err)
		}
		if info.Size() != 0 {
			t.Errorf("expected empty file, got size %d", info.Size())
		}
	})

	t.Run("fails when parent directory is missing", func(t *testing.T) {
		nestedPath := filepath.Join(tmpDir, "nonexistent", "subdir", "test.txt")
		if err := AtomicWriteFile(nestedPath, []byte("test"), 0644); err == nil {
			t.Fatal("expected error for nonexistent parent directory")
		}
	})
}

func TestAtomicWriteFileLeavesNoTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	done := make(chan bool, 5)

	for i := 0; i < 5; i++ {
		go func(n int) {
			content := []byte(strings.Repeat(string(rune('A'+n)), 100))
			if err := AtomicWriteFile(filepath.Join(tmpDir, "out.txt"), content, 0644); err != nil {
				t.Errorf("concurrent write %d failed: %v", n, err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "out.txt"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if len(content) != 100 || strings.Count(string(content), string(content[0])) != 100 {
		t.Errorf("content corrupted: %q", content)
	}

	entries, _ := os.ReadDir(tmpDir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), tempPrefix) {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
}

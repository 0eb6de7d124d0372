package fileutil

import (
	"crypto/md5" //nolint:gosec
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videos", "nested", "beat_1.mp4")
	if err := WriteFileAtomic(path, []byte("clip-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "clip-bytes" {
		t.Fatalf("unexpected content %q", data)
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestWriteFileAtomicReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beat_1.mp4")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("new"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "new" {
		t.Fatalf("expected replaced content, got %q", data)
	}
}

func TestWriteStreamAtomicVerifiesChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	sum := md5.Sum([]byte("payload")) //nolint:gosec

	if _, err := WriteStreamAtomic(path, strings.NewReader("payload"), 0o644, Expect{MD5: sum[:], Size: 7}); err != nil {
		t.Fatalf("expected verified write, got %v", err)
	}

	bad := filepath.Join(dir, "bad.mp4")
	if _, err := WriteStreamAtomic(bad, strings.NewReader("tampered"), 0o644, Expect{MD5: sum[:]}); err == nil {
		t.Fatal("expected checksum mismatch")
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Fatalf("expected no file after mismatch, stat err=%v", err)
	}
	assertNoTempFiles(t, dir)
}

func TestWriteStreamAtomicVerifiesSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if _, err := WriteStreamAtomic(path, strings.NewReader("short"), 0o644, Expect{Size: 100}); err == nil {
		t.Fatal("expected size mismatch")
	}
}

func TestNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	_ = os.WriteFile(empty, nil, 0o644)
	_ = os.WriteFile(full, []byte("x"), 0o644)
	if NonEmpty(empty) || !NonEmpty(full) || NonEmpty(dir) || NonEmpty(filepath.Join(dir, "missing")) {
		t.Fatal("unexpected NonEmpty results")
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("leftover temp file %s", entry.Name())
		}
	}
}

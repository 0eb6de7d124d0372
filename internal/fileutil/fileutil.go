package fileutil

import (
	"bytes"
	"crypto/md5" //nolint:gosec // integrity check against storage metadata
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, creating parent directories as needed. Readers never observe a
// partially written file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := WriteStreamAtomic(path, bytes.NewReader(data), mode, Expect{Size: int64(len(data))})
	return err
}

// Expect describes optional integrity checks for WriteStreamAtomic.
type Expect struct {
	// Size is checked when positive.
	Size int64
	// MD5 is checked when non-empty.
	MD5 []byte
}

// WriteStreamAtomic streams r to path through a temp file, verifying size and
// digest before the rename. The temp file is removed on any failure.
func WriteStreamAtomic(path string, r io.Reader, mode os.FileMode, expect Expect) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	hasher := md5.New() //nolint:gosec
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return written, fmt.Errorf("write %s: %w", path, err)
	}
	if expect.Size > 0 && written != expect.Size {
		return written, fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", expect.Size, written)
	}
	if len(expect.MD5) > 0 && !bytes.Equal(hasher.Sum(nil), expect.MD5) {
		return written, fmt.Errorf("checksum mismatch: %s corrupted in transfer", filepath.Base(path))
	}
	if err := tmp.Sync(); err != nil {
		return written, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return written, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return written, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return written, nil
}

// NonEmpty reports whether path exists as a regular file with content.
func NonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

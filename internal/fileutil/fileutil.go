// Package fileutil holds file copy, move and hashing helpers shared by the
// artifact store and the jobs ledger.
package fileutil

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"lukechampine.com/blake3"
)

// HashReader returns the hex BLAKE3-256 digest of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("blake3 hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the hex BLAKE3-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return HashReader(f)
}

// CopyFileVerified streams src to dst, checking size and BLAKE3 digest of
// what was written against what was read. dst is removed on mismatch. The
// digest is returned on success.
func CopyFileVerified(src, dst string) (string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := blake3.New(32, nil)
	dstHasher := blake3.New(32, nil)
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	srcSum, dstSum := srcHasher.Sum(nil), dstHasher.Sum(nil)
	if hex.EncodeToString(srcSum) != hex.EncodeToString(dstSum) {
		_ = os.Remove(dst)
		return "", errors.New("copy hash mismatch: file corrupted during copy")
	}
	return hex.EncodeToString(dstSum), nil
}

// MoveFile renames src to dst, falling back to a verified copy and delete
// when they sit on different filesystems. The returned digest is empty when
// a plain rename succeeded.
func MoveFile(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return "", nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return "", err
	}
	sum, err := CopyFileVerified(src, dst)
	if err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("remove source after copy: %w", err)
	}
	return sum, nil
}

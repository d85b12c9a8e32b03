// Package fsx wraps the filesystem calls a relocation makes so their failures carry a precise cause.
package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Swappable so tests can simulate failures that are hard to produce on a real filesystem.
var (
	renameFunc   = os.Rename
	mkdirAllFunc = os.MkdirAll
)

// CrossDeviceError is a rename that failed because source and destination are on different filesystems.
//
// Files are never copied and deleted instead, so the source stays where it was.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cannot move %q to %q across filesystems: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is a [CrossDeviceError].
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// PathTypeConflictError means a path exists with the wrong type, such as a file where a directory is needed.
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("%q is a %s, expected a %s", e.Path, e.Got, e.Want)
}

// IsPathTypeConflict reports whether err is a [PathTypeConflictError].
func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// Rename moves src to dst, marking EXDEV failures as [CrossDeviceError].
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// EnsureDir creates dir and any missing parents.
//
// A directory that already exists, including one created concurrently by
// another caller, is success.
func EnsureDir(dir string) error {
	err := mkdirAllFunc(dir, 0o755)
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrExist) {
		if fi, statErr := os.Stat(dir); statErr == nil {
			if fi.IsDir() {
				return nil
			}
			return &PathTypeConflictError{Path: dir, Want: "directory", Got: "file"}
		}
	}

	// MkdirAll reports ENOTDIR when a parent component is a regular file.
	if fi, statErr := os.Stat(dir); statErr == nil && !fi.IsDir() {
		return &PathTypeConflictError{Path: dir, Want: "directory", Got: "file"}
	}
	return err
}

// SamePath reports whether a and b name the same cleaned path.
func SamePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// WriteFileAtomic writes data to path through a temporary file in the same directory, replacing any existing file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return Rename(tmpName, path)
}

// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Open reads and parses a pack file in the default layout.
func Open(path string) (*Archive, error) {
	return OpenFormat(path, DefaultFormat())
}

// OpenFormat reads and parses a pack file laid out according to f.
func OpenFormat(path string, f Format) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return ParseFormat(data, f)
}

// Save validates the archive and writes it to path. The pack is written to
// a temporary file in the same directory and renamed over path, so a failed
// save leaves any existing file untouched.
func (a *Archive) Save(path string) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return writeFileAtomic(path, a.Bytes())
}

// WriteFile writes data to path the way Save does, without parsing or
// re-encoding it.
func WriteFile(path string, data []byte) error {
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes data to a temp file beside path and moves it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Op: "create directory", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".binpack_*.tmp")
	if err != nil {
		return &IOError{Op: "create temp file", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpPath)
		return &IOError{Op: "write", Path: tmpPath, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Rename can fail across filesystems or over a locked file.
		if err := copyFile(tmpPath, path); err != nil {
			os.Remove(tmpPath)
			return &IOError{Op: "save", Path: path, Err: err}
		}
		os.Remove(tmpPath)
	}
	return nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

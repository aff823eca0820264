// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"errors"
	"fmt"

	"github.com/suprsokr/go-binpack/px"
)

var (
	// ErrMalformed is returned when a buffer is not a structurally valid pack.
	ErrMalformed = errors.New("binpack: malformed container")

	// ErrIndexOutOfRange is returned when an entry index is outside the archive.
	ErrIndexOutOfRange = errors.New("binpack: index out of range")

	// ErrIO is returned when reading or writing a pack file fails.
	ErrIO = errors.New("binpack: i/o failure")

	// ErrInvalidFormat is returned when format constants are unusable.
	ErrInvalidFormat = errors.New("binpack: invalid format")

	// ErrTooLarge is returned when a change would push the archive past the
	// 32-bit offset range or past Format.MaxEntries entries.
	ErrTooLarge = errors.New("binpack: archive too large")

	// ErrEmptyArchive is returned when saving an archive with no entries.
	ErrEmptyArchive = errors.New("binpack: archive has no entries")

	// ErrEmptyEntry is returned when saving an archive that holds an empty entry.
	ErrEmptyEntry = errors.New("binpack: empty entry")

	// ErrNoArchive is returned by Session operations before an archive is loaded.
	ErrNoArchive = errors.New("binpack: no archive loaded")
)

// ErrDecode is returned when a compressed entry cannot be decoded.
var ErrDecode = px.ErrCorrupt

// FormatError describes where parsing a pack failed.
type FormatError struct {
	Offset int // byte offset of the offending field
	Index  int // entry index, or -1 for header fields
	Reason string
}

func (e *FormatError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("binpack: malformed container: entry %d at 0x%X: %s", e.Index, e.Offset, e.Reason)
	}
	return fmt.Sprintf("binpack: malformed container at 0x%X: %s", e.Offset, e.Reason)
}

// Is reports whether target is ErrMalformed.
func (e *FormatError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(offset, index int, format string, args ...any) error {
	return &FormatError{Offset: offset, Index: index, Reason: fmt.Sprintf(format, args...)}
}

// IndexError reports an entry index outside [0, Len).
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("binpack: %s: index %d out of range [0, %d)", e.Op, e.Index, e.Len)
}

// Is reports whether target is ErrIndexOutOfRange.
func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// IOError wraps a filesystem failure with the operation and path involved.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("binpack: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

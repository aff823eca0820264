// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Pack format constants
const (
	// headerSize covers the magic word and the entry count.
	headerSize = 8

	// Offset/length layout: one (offset, length) pair per entry, then a
	// zeroed pair that terminates the table.
	tocEntrySize      = 8
	tocTerminatorSize = 8

	// Sentinel layout: entry count plus one offsets, the last equal to the
	// file length.
	sentinelEntrySize = 4

	defaultAlignment  = 16
	defaultFill       = 0xFF
	defaultMaxEntries = 10000
)

// Layout selects how the offset table is encoded.
type Layout int

const (
	// LayoutOffsetLength stores an (offset, length) pair per entry followed
	// by an 8-byte zero terminator. This is the layout of the game's packs.
	LayoutOffsetLength Layout = iota

	// LayoutOffsetSentinel stores count+1 offsets; each entry's length is the
	// distance to the next offset and the last offset is the file length.
	LayoutOffsetSentinel
)

func (l Layout) String() string {
	switch l {
	case LayoutOffsetLength:
		return "offset-length"
	case LayoutOffsetSentinel:
		return "offset-sentinel"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout returns the layout with the given name.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "offset-length", "":
		return LayoutOffsetLength, nil
	case "offset-sentinel":
		return LayoutOffsetSentinel, nil
	}
	return 0, fmt.Errorf("%w: unknown layout %q", ErrInvalidFormat, s)
}

// Format holds the calibration constants of a pack file.
type Format struct {
	Layout Layout

	// Magic is written to the first header word of new archives. Archives
	// read from disk keep the value they were loaded with.
	Magic uint32

	// CheckMagic rejects files whose first word differs from Magic.
	CheckMagic bool

	// Alignment pads each entry's data to a multiple of this many bytes.
	Alignment int

	// HeaderAlignment aligns the start of the data region.
	HeaderAlignment int

	// Fill is the byte used for all padding.
	Fill byte

	// MaxEntries bounds the entry count accepted when parsing and editing.
	// Zero means no limit.
	MaxEntries int
}

// DefaultFormat returns the layout used by the game's pack files: a zero
// magic word, (offset, length) pairs and 16-byte alignment padded with 0xFF.
func DefaultFormat() Format {
	return Format{
		Layout:          LayoutOffsetLength,
		Magic:           0,
		CheckMagic:      true,
		Alignment:       defaultAlignment,
		HeaderAlignment: defaultAlignment,
		Fill:            defaultFill,
		MaxEntries:      defaultMaxEntries,
	}
}

// SentinelFormat returns an implicit-length layout with no padding.
func SentinelFormat() Format {
	return Format{
		Layout:          LayoutOffsetSentinel,
		Magic:           0,
		CheckMagic:      false,
		Alignment:       1,
		HeaderAlignment: 1,
		Fill:            defaultFill,
		MaxEntries:      defaultMaxEntries,
	}
}

// Validate checks that the format constants are usable.
func (f Format) Validate() error {
	if f.Layout != LayoutOffsetLength && f.Layout != LayoutOffsetSentinel {
		return fmt.Errorf("%w: unknown layout %d", ErrInvalidFormat, int(f.Layout))
	}
	if !isPowerOf2(f.Alignment) {
		return fmt.Errorf("%w: alignment %d is not a power of two", ErrInvalidFormat, f.Alignment)
	}
	if !isPowerOf2(f.HeaderAlignment) {
		return fmt.Errorf("%w: header alignment %d is not a power of two", ErrInvalidFormat, f.HeaderAlignment)
	}
	// Lengths are implicit in the sentinel layout, so entry padding would
	// become part of the entry that precedes it.
	if f.Layout == LayoutOffsetSentinel && f.Alignment != 1 {
		return fmt.Errorf("%w: %s layout cannot pad entries (alignment %d)", ErrInvalidFormat, f.Layout, f.Alignment)
	}
	if f.MaxEntries < 0 {
		return fmt.Errorf("%w: negative max entries", ErrInvalidFormat)
	}
	return nil
}

// minHeaderSize is the smallest buffer that can hold a header and an empty table.
func (f Format) minHeaderSize() int {
	return f.tableEnd(0)
}

// tableEnd returns the offset just past the offset table for count entries.
func (f Format) tableEnd(count int) int {
	if f.Layout == LayoutOffsetSentinel {
		return headerSize + (count+1)*sentinelEntrySize
	}
	return headerSize + count*tocEntrySize + tocTerminatorSize
}

// packHeader is the fixed header at the start of every pack.
type packHeader struct {
	Magic uint32 // 0 in the game's packs
	Count uint32 // number of entries
}

// tocEntry is one row of the offset/length table.
type tocEntry struct {
	Offset uint32
	Length uint32
}

// readPackHeader reads the pack header from a reader
func readPackHeader(r io.Reader) (*packHeader, error) {
	h := &packHeader{}
	if err := binary.Read(r, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return h, nil
}

// writePackHeader writes the pack header to a writer
func writePackHeader(w io.Writer, h *packHeader) error {
	return binary.Write(w, binary.LittleEndian, h)
}

// alignUp rounds n up to the next multiple of align (a power of two).
func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

func isPowerOf2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"slices"
)

// maxArchiveSize is the largest pack addressable by 32-bit offsets.
const maxArchiveSize = math.MaxUint32

// Archive is an in-memory pack: an ordered list of entries plus the header
// fields needed to write it back. An entry's index is its only identifier.
//
// An Archive is not safe for concurrent use.
type Archive struct {
	format  Format
	magic   uint32
	entries [][]byte

	// dataStart is the data-region start read from the source file. It is
	// kept on write when it is not smaller than the computed minimum.
	dataStart int

	// payload is the sum of the padded entry sizes.
	payload int
}

// New returns an empty archive using format f.
func New(f Format) (*Archive, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &Archive{format: f, magic: f.Magic}, nil
}

// Parse reads a pack in the default layout.
func Parse(data []byte) (*Archive, error) {
	return ParseFormat(data, DefaultFormat())
}

// ParseFormat reads a pack laid out according to f. Entries are copied out
// of data, so the caller may reuse the buffer.
func ParseFormat(data []byte, f Format) (*Archive, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(data) < f.minHeaderSize() {
		return nil, malformed(0, -1, "file too small (%d bytes, need %d)", len(data), f.minHeaderSize())
	}

	header, err := readPackHeader(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(0, -1, "read header: %v", err)
	}
	if f.CheckMagic && header.Magic != f.Magic {
		return nil, malformed(0, -1, "invalid magic 0x%08X (expected 0x%08X)", header.Magic, f.Magic)
	}
	if f.MaxEntries > 0 && int64(header.Count) > int64(f.MaxEntries) {
		return nil, malformed(4, -1, "unreasonable entry count %d (max %d)", header.Count, f.MaxEntries)
	}

	count := int(header.Count)
	tableEnd := f.tableEnd(count)
	if tableEnd > len(data) {
		return nil, malformed(headerSize, -1, "offset table for %d entries overruns %d-byte file", count, len(data))
	}

	var spans []tocEntry
	if f.Layout == LayoutOffsetSentinel {
		spans, err = readSentinelTable(data, count, tableEnd)
	} else {
		spans, err = readOffsetLengthTable(data, count, tableEnd)
	}
	if err != nil {
		return nil, err
	}

	a := &Archive{
		format:  f,
		magic:   header.Magic,
		entries: make([][]byte, count),
	}
	if count > 0 {
		a.dataStart = int(spans[0].Offset)
	}
	for i, s := range spans {
		a.entries[i] = bytes.Clone(data[s.Offset : s.Offset+s.Length])
		a.payload += a.padded(int(s.Length))
	}
	return a, nil
}

// readOffsetLengthTable reads count (offset, length) pairs.
func readOffsetLengthTable(data []byte, count, tableEnd int) ([]tocEntry, error) {
	spans := make([]tocEntry, count)
	if err := binary.Read(bytes.NewReader(data[headerSize:]), binary.LittleEndian, spans); err != nil {
		return nil, malformed(headerSize, -1, "read offset table: %v", err)
	}

	prev := tableEnd
	for i, s := range spans {
		pos := headerSize + i*tocEntrySize
		off, n := int(s.Offset), int(s.Length)
		switch {
		case off < tableEnd:
			return nil, malformed(pos, i, "offset 0x%X inside offset table", off)
		case off < prev:
			return nil, malformed(pos, i, "offset 0x%X precedes previous offset 0x%X", off, prev)
		case off > len(data) || n > len(data)-off:
			return nil, malformed(pos, i, "data 0x%X+0x%X past end of %d-byte file", off, n, len(data))
		}
		prev = off
	}
	return spans, nil
}

// readSentinelTable reads count+1 offsets and turns consecutive pairs into
// spans. The closing offset is taken to be the file length.
func readSentinelTable(data []byte, count, tableEnd int) ([]tocEntry, error) {
	offsets := make([]uint32, count+1)
	if err := binary.Read(bytes.NewReader(data[headerSize:]), binary.LittleEndian, offsets); err != nil {
		return nil, malformed(headerSize, -1, "read offset table: %v", err)
	}

	last := headerSize + count*sentinelEntrySize
	if int64(offsets[count]) > int64(len(data)) {
		return nil, malformed(last, count, "end offset 0x%X past end of %d-byte file", offsets[count], len(data))
	}
	offsets[count] = uint32(len(data))

	prev := tableEnd
	for i, o := range offsets {
		pos := headerSize + i*sentinelEntrySize
		off := int(o)
		switch {
		case off < tableEnd:
			return nil, malformed(pos, i, "offset 0x%X inside offset table", off)
		case off < prev:
			return nil, malformed(pos, i, "offset 0x%X precedes previous offset 0x%X", off, prev)
		case off > len(data):
			return nil, malformed(pos, i, "offset 0x%X past end of %d-byte file", off, len(data))
		}
		prev = off
	}

	spans := make([]tocEntry, count)
	for i := range spans {
		spans[i] = tocEntry{Offset: offsets[i], Length: offsets[i+1] - offsets[i]}
	}
	return spans, nil
}

// Format returns the format the archive is written with.
func (a *Archive) Format() Format {
	return a.format
}

// Magic returns the header's leading word.
func (a *Archive) Magic() uint32 {
	return a.magic
}

// Len returns the number of entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Entry returns a copy of entry i.
func (a *Archive) Entry(i int) ([]byte, error) {
	if err := a.checkIndex("entry", i, len(a.entries)); err != nil {
		return nil, err
	}
	return bytes.Clone(a.entries[i]), nil
}

// All iterates over copies of the entries in index order.
func (a *Archive) All() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		for i, e := range a.entries {
			if !yield(i, bytes.Clone(e)) {
				return
			}
		}
	}
}

// Replace sets entry i to a copy of data. The new content may have any length.
func (a *Archive) Replace(i int, data []byte) error {
	if err := a.checkIndex("replace", i, len(a.entries)); err != nil {
		return err
	}
	delta := a.padded(len(data)) - a.padded(len(a.entries[i]))
	first := len(a.entries[0])
	if i == 0 {
		first = len(data)
	}
	if err := a.checkSize(len(a.entries), delta, first); err != nil {
		return err
	}
	a.entries[i] = bytes.Clone(data)
	a.payload += delta
	return nil
}

// Insert places a copy of data at index i, shifting later entries up by one.
// i may equal Len to append. It fails with ErrTooLarge when the archive
// already holds Format.MaxEntries entries.
func (a *Archive) Insert(i int, data []byte) error {
	if err := a.checkIndex("insert", i, len(a.entries)+1); err != nil {
		return err
	}
	if limit := a.format.MaxEntries; limit > 0 && len(a.entries) >= limit {
		return fmt.Errorf("%w: %d entries (max %d)", ErrTooLarge, len(a.entries)+1, limit)
	}
	delta := a.padded(len(data))
	first := len(data)
	if i > 0 {
		first = len(a.entries[0])
	}
	if err := a.checkSize(len(a.entries)+1, delta, first); err != nil {
		return err
	}
	a.entries = slices.Insert(a.entries, i, bytes.Clone(data))
	a.payload += delta
	return nil
}

// Append adds a copy of data after the last entry and returns its index.
func (a *Archive) Append(data []byte) (int, error) {
	i := len(a.entries)
	if err := a.Insert(i, data); err != nil {
		return -1, err
	}
	return i, nil
}

// Remove deletes entry i, shifting later entries down by one.
func (a *Archive) Remove(i int) error {
	if err := a.checkIndex("remove", i, len(a.entries)); err != nil {
		return err
	}
	a.payload -= a.padded(len(a.entries[i]))
	a.entries = slices.Delete(a.entries, i, i+1)
	return nil
}

// Clear removes every entry. The header fields are kept.
func (a *Archive) Clear() {
	clear(a.entries)
	a.entries = a.entries[:0]
	a.payload = 0
}

// Validate reports whether the game loader would accept the archive: it
// must hold at least one entry and no entry may be empty.
func (a *Archive) Validate() error {
	if len(a.entries) == 0 {
		return ErrEmptyArchive
	}
	for i, e := range a.entries {
		if len(e) == 0 {
			return fmt.Errorf("entry %d: %w", i, ErrEmptyEntry)
		}
	}
	return nil
}

func (a *Archive) checkIndex(op string, i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Op: op, Index: i, Len: n}
	}
	return nil
}

// checkSize rejects a change that would leave count entries, the padded
// payload grown by delta bytes and the first entry first bytes long, beyond
// the 32-bit offset range.
func (a *Archive) checkSize(count, delta, first int) error {
	if int64(a.extent(count, a.payload+delta, first)) > maxArchiveSize {
		return ErrTooLarge
	}
	return nil
}

// extent returns the serialized size of count entries whose padded sizes
// sum to payload, the first of them first bytes long.
func (a *Archive) extent(count, payload, first int) int {
	start := a.dataRegionStart(count)
	if count == 0 {
		return start
	}
	head := alignUp(start+first, a.format.Alignment)
	return head + payload - a.padded(first)
}

// padded returns the stored size of an n-byte entry.
func (a *Archive) padded(n int) int {
	return alignUp(n, a.format.Alignment)
}

// dataRegionStart returns where entry data begins for count entries.
func (a *Archive) dataRegionStart(count int) int {
	start := alignUp(a.format.tableEnd(count), a.format.HeaderAlignment)
	return max(start, a.dataStart)
}

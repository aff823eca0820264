// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// TableEntry is one row of the offset table a write would produce.
type TableEntry struct {
	Offset int // start of the entry's data
	Length int // entry size in bytes
	Padded int // bytes occupied including alignment padding
}

// layout is the placement of every entry in the serialized pack.
type layout struct {
	start int // data region start
	rows  []TableEntry
	size  int // total file size
}

// plan computes where each entry will be written. Each entry is padded up
// to the next absolute alignment boundary, so a preserved unaligned data
// start only affects the first entry. The table and padding are always
// rebuilt from scratch.
func (a *Archive) plan() layout {
	p := layout{
		start: a.dataRegionStart(len(a.entries)),
		rows:  make([]TableEntry, len(a.entries)),
	}
	cursor := p.start
	for i, e := range a.entries {
		next := alignUp(cursor+len(e), a.format.Alignment)
		p.rows[i] = TableEntry{Offset: cursor, Length: len(e), Padded: next - cursor}
		cursor = next
	}
	p.size = cursor
	return p
}

// Table returns the offset table the next write will produce.
func (a *Archive) Table() []TableEntry {
	return a.plan().rows
}

// Size returns the length of the serialized pack.
func (a *Archive) Size() int {
	first := 0
	if len(a.entries) > 0 {
		first = len(a.entries[0])
	}
	return a.extent(len(a.entries), a.payload, first)
}

// Bytes serializes the archive.
func (a *Archive) Bytes() []byte {
	p := a.plan()
	var buf bytes.Buffer
	buf.Grow(p.size)
	// bytes.Buffer writes cannot fail.
	_ = a.encode(&buf, p)
	return buf.Bytes()
}

// WriteTo writes the serialized archive to w.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	err := a.encode(cw, a.plan())
	return cw.n, err
}

// encode writes the header, offset table, fill and padded entries.
func (a *Archive) encode(w io.Writer, p layout) error {
	header := &packHeader{Magic: a.magic, Count: uint32(len(p.rows))}
	if err := writePackHeader(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := a.writeTable(w, p); err != nil {
		return fmt.Errorf("write offset table: %w", err)
	}

	if err := writeFill(w, p.start-a.format.tableEnd(len(p.rows)), a.format.Fill); err != nil {
		return fmt.Errorf("write header padding: %w", err)
	}

	for i, row := range p.rows {
		if _, err := w.Write(a.entries[i]); err != nil {
			return fmt.Errorf("write entry %d: %w", i, err)
		}
		if err := writeFill(w, row.Padded-row.Length, a.format.Fill); err != nil {
			return fmt.Errorf("write entry %d padding: %w", i, err)
		}
	}
	return nil
}

func (a *Archive) writeTable(w io.Writer, p layout) error {
	if a.format.Layout == LayoutOffsetSentinel {
		offsets := make([]uint32, len(p.rows)+1)
		for i, row := range p.rows {
			offsets[i] = uint32(row.Offset)
		}
		offsets[len(p.rows)] = uint32(p.size)
		return binary.Write(w, binary.LittleEndian, offsets)
	}

	// The zero row terminates the table.
	toc := make([]tocEntry, len(p.rows)+1)
	for i, row := range p.rows {
		toc[i] = tocEntry{Offset: uint32(row.Offset), Length: uint32(row.Length)}
	}
	return binary.Write(w, binary.LittleEndian, toc)
}

// writeFill writes n copies of fill.
func writeFill(w io.Writer, n int, fill byte) error {
	if n <= 0 {
		return nil
	}
	chunk := bytes.Repeat([]byte{fill}, min(n, 4096))
	for n > 0 {
		k := min(n, len(chunk))
		if _, err := w.Write(chunk[:k]); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

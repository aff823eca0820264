// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package px implements the PX compression algorithm and the PKDPX and AT4PX
// containers that wrap it.
//
// PX is an LZ77 variant. The output is a series of command bytes, each
// followed by up to eight operations. A set bit copies the next byte as-is;
// a cleared bit reads an operation byte whose high nibble selects either a
// nibble-pattern expansion (when it equals one of the nine control flags) or
// a back-reference of 3 to 18 bytes within the previous 4096 bytes.
package px

import (
	"slices"
)

const (
	lookbackSize  = 4096
	maxMatchLen   = 18
	minMatchLen   = 3
	maxSeqLengths = 7
	maxChainWalk  = 96

	// FlagCount is the number of control flag bytes stored in a container header.
	FlagCount = 9
)

// Decompress expands a PX stream using the given control flags.
func Decompress(src []byte, flags []byte) ([]byte, error) {
	if len(flags) != FlagCount {
		return nil, &CorruptError{Offset: 0, Reason: "control flags must be 9 bytes"}
	}

	// Later duplicates win, matching the reference decoder.
	var flagIndex [16]int
	for i := range flagIndex {
		flagIndex[i] = -1
	}
	for i, f := range flags {
		if f < 16 {
			flagIndex[f] = i
		}
	}

	out := make([]byte, 0, len(src)*2)
	cursor := 0

	for cursor < len(src) {
		ctrl := src[cursor]
		cursor++

		for shift := 7; shift >= 0; shift-- {
			if cursor >= len(src) {
				break
			}

			if ctrl>>uint(shift)&1 != 0 {
				out = append(out, src[cursor])
				cursor++
				continue
			}

			op := src[cursor]
			cursor++
			high := int(op >> 4)
			low := int(op & 0x0F)

			if idx := flagIndex[high]; idx >= 0 {
				b1, b2 := nibblePattern(idx, low)
				out = append(out, b1, b2)
				continue
			}

			if cursor >= len(src) {
				return nil, &CorruptError{Offset: cursor, Reason: "truncated back-reference"}
			}
			offset := -0x1000 + (low << 8) + int(src[cursor])
			cursor++

			from := len(out) + offset
			if from < 0 {
				return nil, &CorruptError{Offset: cursor - 2, Reason: "back-reference before start of output"}
			}

			// Byte-wise so overlapping runs replicate.
			n := high + minMatchLen
			for i := 0; i < n; i++ {
				out = append(out, out[from+i])
			}
		}
	}

	return out, nil
}

// nibblePattern rebuilds two bytes from a control flag index and a nibble.
// Index 0 repeats the nibble four times; 1-4 lower one nibble and 5-8 raise
// one nibble relative to the base.
func nibblePattern(idx, low int) (byte, byte) {
	if idx == 0 {
		b := byte(low<<4 | low)
		return b, b
	}

	base := low
	switch idx {
	case 1:
		base++
	case 5:
		base--
	}

	ns := [4]int{base, base, base, base}
	if idx <= 4 {
		ns[idx-1]--
	} else {
		ns[idx-5]++
	}

	return byte(ns[0]<<4 | ns[1]), byte(ns[2]<<4 | ns[3])
}

type opKind int

const (
	opCopyAsIs opKind = -1
	// opNibble0..opNibble8 map directly onto control flag indices.
	opNibble0  opKind = 0
	opSequence opKind = 9
)

type operation struct {
	kind opKind
	high byte
	low  byte
	next byte
}

// compressor holds the state of a single Compress call.
type compressor struct {
	src     []byte
	pos     int
	ops     []operation
	lengths []int // allowed high nibbles for back-references, sorted
	used    [16]bool
	head    map[uint32]int
	prev    []int
}

// Compress encodes src, returning the control flags and the PX stream.
func Compress(src []byte) (flags []byte, dst []byte) {
	c := &compressor{
		src:     src,
		ops:     make([]operation, 0, len(src)),
		lengths: []int{0, 0x0F},
		head:    make(map[uint32]int),
		prev:    make([]int, len(src)),
	}
	c.used[0] = true
	c.used[0x0F] = true
	for i := range c.prev {
		c.prev[i] = -1
	}

	for c.pos < len(src) {
		c.ops = append(c.ops, c.next())
	}

	flags = c.controlFlags()
	return flags, c.emit(flags)
}

func (c *compressor) hash3(pos int) (uint32, bool) {
	if pos+3 > len(c.src) {
		return 0, false
	}
	return uint32(c.src[pos])<<16 | uint32(c.src[pos+1])<<8 | uint32(c.src[pos+2]), true
}

func (c *compressor) index(pos int) {
	h, ok := c.hash3(pos)
	if !ok {
		return
	}
	if last, seen := c.head[h]; seen {
		c.prev[pos] = last
	}
	c.head[h] = pos
}

// next picks the best operation at the cursor and advances past it.
func (c *compressor) next() operation {
	pos := c.pos

	if op, ok := c.sequence(pos); ok {
		n := int(op.high) + minMatchLen
		for i := 0; i < n; i++ {
			c.index(pos + i)
		}
		c.pos += n
		return op
	}

	if op, ok := c.nibbles(pos); ok {
		c.index(pos)
		c.index(pos + 1)
		c.pos += 2
		return op
	}

	b := c.src[pos]
	c.index(pos)
	c.pos++
	return operation{kind: opCopyAsIs, high: b >> 4, low: b & 0x0F}
}

// nibbles reports whether the two bytes at pos can be encoded as a single
// nibble-pattern operation.
func (c *compressor) nibbles(pos int) (operation, bool) {
	if pos+2 > len(c.src) {
		return operation{}, false
	}

	b1, b2 := c.src[pos], c.src[pos+1]
	ns := [4]int{int(b1 >> 4), int(b1 & 0x0F), int(b2 >> 4), int(b2 & 0x0F)}

	if ns[0] == ns[1] && ns[1] == ns[2] && ns[2] == ns[3] {
		return operation{kind: opNibble0, low: byte(ns[3])}, true
	}

	lo, hi := slices.Min(ns[:]), slices.Max(ns[:])
	if hi-lo != 1 {
		return operation{}, false
	}

	var loCount, hiCount int
	for _, n := range ns {
		if n == lo {
			loCount++
		} else {
			hiCount++
		}
	}

	switch {
	case loCount == 1:
		idx := slices.Index(ns[:], lo)
		low := ns[idx] + 1
		if idx == 0 {
			low = ns[idx]
		}
		return operation{kind: opKind(idx + 1), low: byte(low)}, true
	case hiCount == 1:
		idx := slices.Index(ns[:], hi)
		low := ns[idx] - 1
		if idx == 0 {
			low = ns[idx]
		}
		return operation{kind: opKind(idx + 5), low: byte(low)}, true
	}

	return operation{}, false
}

// sequence searches the hash chain for the longest earlier match at pos.
func (c *compressor) sequence(pos int) (operation, bool) {
	maxLen := min(len(c.src)-pos, maxMatchLen)
	if maxLen < minMatchLen {
		return operation{}, false
	}

	h, ok := c.hash3(pos)
	if !ok {
		return operation{}, false
	}

	start := max(pos-lookbackSize, 0)
	bestPos, bestLen := -1, 0

	candidate, seen := c.head[h]
	if !seen {
		candidate = -1
	}
	for walked := 0; candidate >= start && walked < maxChainWalk; walked++ {
		limit := min(pos-candidate, maxLen)
		if limit > bestLen && c.src[candidate] == c.src[pos] {
			n := 1
			for n < limit && c.src[candidate+n] == c.src[pos+n] {
				n++
			}
			if n > bestLen {
				bestLen, bestPos = n, candidate
				if bestLen >= maxMatchLen {
					break
				}
			}
		}
		candidate = c.prev[candidate]
	}

	if bestLen < minMatchLen {
		return operation{}, false
	}

	high := bestLen - minMatchLen
	if !c.used[high] {
		if len(c.lengths) < maxSeqLengths {
			c.addLength(high)
		} else {
			// Fall back to the longest registered length that still fits.
			found := false
			for i := len(c.lengths) - 1; i >= 0; i-- {
				if c.lengths[i]+minMatchLen <= bestLen {
					high = c.lengths[i]
					found = true
					break
				}
			}
			if !found {
				return operation{}, false
			}
		}
	}

	offset := -(pos - bestPos)
	return operation{
		kind: opSequence,
		high: byte(high),
		low:  byte(offset>>8) & 0x0F,
		next: byte(offset),
	}, true
}

func (c *compressor) addLength(n int) {
	c.lengths = append(c.lengths, n)
	slices.Sort(c.lengths)
	c.used[n] = true
}

// controlFlags fills the length set up to seven entries and assigns the
// remaining nibble values to the nine control flags.
func (c *compressor) controlFlags() []byte {
	for v := 0; v < 0x0F && len(c.lengths) < maxSeqLengths; v++ {
		if !c.used[v] {
			c.addLength(v)
		}
	}

	flags := make([]byte, FlagCount)
	n := 0
	for v := 0; v < 0x0F && n < FlagCount; v++ {
		if !c.used[v] {
			flags[n] = byte(v)
			n++
		}
	}
	return flags
}

func (c *compressor) emit(flags []byte) []byte {
	out := make([]byte, 0, len(c.src)+len(c.src)/8+1)

	for i := 0; i < len(c.ops); i += 8 {
		group := c.ops[i:min(i+8, len(c.ops))]

		var cmd byte
		for j, op := range group {
			if op.kind == opCopyAsIs {
				cmd |= 1 << (7 - j)
			}
		}
		out = append(out, cmd)

		for _, op := range group {
			switch op.kind {
			case opCopyAsIs:
				out = append(out, op.high<<4|op.low)
			case opSequence:
				out = append(out, op.high<<4|op.low, op.next)
			default:
				out = append(out, flags[op.kind]<<4|op.low)
			}
		}
	}

	return out
}

// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package filetype classifies pack entries by their leading bytes.
//
// Classification is an ordered walk over a fixed signature table: the first
// matcher that accepts the data wins, so stricter signatures are listed
// before looser ones. Data that matches nothing is Unknown, which is a
// normal outcome rather than an error.
package filetype

import (
	"bytes"
	"fmt"

	"github.com/suprsokr/go-binpack/px"
)

// minSize is the shortest entry the signature table inspects.
const minSize = 16

// SIR0 wrapper constants
const (
	sir0Pad = 0xAAAAAAAA

	// zmappatTileBytes is the distance between the tile and palette blocks of a ZMAPPAT.
	zmappatTileBytes = 3072
)

var (
	magicSIR0 = []byte("SIR0")
	magicWTE  = []byte("WTE\x00")
	magicWTU  = []byte("WTU\x00")
)

// raw4bppSizes are the exact lengths of the headerless 4bpp images.
var raw4bppSizes = [...]int{24576, 1604}

type signature struct {
	label Label
	match func(b []byte) bool
}

// sir0Signatures is tried, in order, against data that starts with "SIR0".
var sir0Signatures = [...]signature{
	{Screen, isScreen},
	{WAN, isWAN},
	{WAT, isWAT},
	{SIR0AT4PX, sir0Prefix(px.MagicAT4PX)},
	{SIR0PKDPX, sir0Prefix(px.MagicPKDPX)},
	{WTE, sir0Prefix(string(magicWTE))},
	{DPLA, isDPLA},
	{COLVEC, isColVec},
	{ZMAPPAT, isZMapPat},
	{SIR0IMG, isSIR0Image},
}

// signatures is tried, in order, against everything else.
var signatures = [...]signature{
	{AT4PX, prefix(px.MagicAT4PX)},
	{PKDPX, prefix(px.MagicPKDPX)},
	{WTU, prefix(string(magicWTU))},
	{BGP, isBGP},
	{DPL, isDPL},
	{WBA, func(b []byte) bool { return u32(b, 0) == 2 }},
	{RAW4BPP, isRaw4bpp},
}

// Detect returns the label for data. It never fails.
func Detect(data []byte) Label {
	if len(data) < minSize {
		return Unknown
	}

	table, fallback := signatures[:], Unknown
	if bytes.HasPrefix(data, magicSIR0) {
		table, fallback = sir0Signatures[:], SIR0
	}

	for _, sig := range table {
		if sig.match(data) {
			return sig.label
		}
	}
	return fallback
}

// DecodeIfCompressed returns the decompressed payload of a bare PKDPX or
// AT4PX entry. Any other data is returned as an unchanged copy.
func DecodeIfCompressed(data []byte) ([]byte, error) {
	label := Detect(data)
	if !label.Compressed() {
		return bytes.Clone(data), nil
	}

	out, err := px.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return out, nil
}

// Inspection is the result of classifying an entry and, when it is a bare
// PX container, the payload inside it.
type Inspection struct {
	Label   Label
	Inner   Label  // label of Payload; Unknown unless Payload is set
	Payload []byte // decompressed content, nil when not compressed or on error
	Err     error  // decode failure; the entry is still usable as raw bytes
}

// Decoded reports whether the entry was compressed and decoded cleanly.
func (i Inspection) Decoded() bool {
	return i.Payload != nil
}

// ExportLabel is the label describing the bytes an export would write when
// decompression is requested.
func (i Inspection) ExportLabel() Label {
	if i.Decoded() {
		return i.Inner
	}
	return i.Label
}

// String renders the label, nesting the inner label for compressed entries
// (for example "PKDPX(WAN)").
func (i Inspection) String() string {
	if i.Decoded() {
		return fmt.Sprintf("%s(%s)", i.Label, i.Inner)
	}
	return i.Label.String()
}

// Inspect classifies data and unwraps it when it is a bare PX container.
func Inspect(data []byte) Inspection {
	res := Inspection{Label: Detect(data)}
	if !res.Label.Compressed() {
		return res
	}

	payload, err := px.Decode(data)
	if err != nil {
		res.Err = fmt.Errorf("decode %s: %w", res.Label, err)
		return res
	}
	if payload == nil {
		payload = []byte{}
	}
	res.Payload = payload
	res.Inner = Detect(payload)
	return res
}

// le reads up to n little-endian bytes at off. Bytes past the end of b read
// as absent, so a short read yields a smaller value rather than a panic.
func le(b []byte, off, n int) int {
	if off < 0 || off >= len(b) {
		return 0
	}
	end := min(off+n, len(b))
	v := 0
	for i := end - 1; i >= off; i-- {
		v = v<<8 | int(b[i])
	}
	return v
}

func u16(b []byte, off int) int { return le(b, off, 2) }
func u32(b []byte, off int) int { return le(b, off, 4) }

// sub returns the SIR0 sub-header pointer.
func sub(b []byte) int { return u32(b, 4) }

// within reports whether 0 < p < len(b).
func within(b []byte, p int) bool { return p > 0 && p < len(b) }

func prefix(magic string) func([]byte) bool {
	return func(b []byte) bool {
		return bytes.HasPrefix(b, []byte(magic))
	}
}

func sir0Prefix(magic string) func([]byte) bool {
	return func(b []byte) bool {
		p := sub(b)
		return p+16 <= len(b) && bytes.HasPrefix(b[p:], []byte(magic))
	}
}

func isScreen(b []byte) bool {
	p := sub(b)
	if p+32 > len(b) {
		return false
	}
	if u32(b, p+0x18) != sir0Pad || u32(b, p+0x1C) != sir0Pad {
		return false
	}
	return within(b, u32(b, p+12)) && within(b, u32(b, p+16))
}

func spritePointers(b []byte) bool {
	p := sub(b)
	return u32(b, p) < len(b) && u32(b, p+4) < len(b)
}

func isWAN(b []byte) bool {
	t := u16(b, sub(b)+8)
	return spritePointers(b) && t <= 2
}

func isWAT(b []byte) bool {
	return spritePointers(b) && u16(b, sub(b)+8) == 3
}

func isDPLA(b []byte) bool {
	p := sub(b)
	if p+16 > len(b) {
		return false
	}
	first := u32(b, p)
	if first >= len(b) || first+8 > len(b) {
		return false
	}
	switch colors := u16(b, first); {
	case colors > 0 && colors <= 256:
		return first+7 < len(b) && b[first+7] == 0x80
	case colors == 0:
		return first+3 < len(b) && b[first+2] == 0x04
	}
	return false
}

func isColVec(b []byte) bool {
	p := sub(b)
	if p+16 > len(b) || b[p+3] != 0xFF {
		return false
	}
	for i := 0; i < min(4, (len(b)-p)/4); i++ {
		if b[p+i*4+3] != 0xFF {
			return false
		}
	}
	return true
}

func isZMapPat(b []byte) bool {
	p := sub(b)
	if p+16 > len(b) {
		return false
	}
	tiles, pal := u32(b, p), u32(b, p+4)
	return within(b, tiles) && within(b, pal) && pal-tiles == zmappatTileBytes
}

func isSIR0Image(b []byte) bool {
	p := sub(b)
	if p+16 > len(b) {
		return false
	}
	return within(b, u32(b, p+4)) && within(b, u32(b, p+8))
}

func isBGP(b []byte) bool {
	if len(b) < 32 || u32(b, 0) != 32 {
		return false
	}
	palLen := u32(b, 4)
	return palLen > 0 && palLen%16 == 0
}

func isDPL(b []byte) bool {
	if len(b)%4 != 0 {
		return false
	}
	for i := 3; i < min(len(b), 64); i += 4 {
		if b[i] != 0x80 {
			return false
		}
	}
	return true
}

func isRaw4bpp(b []byte) bool {
	for _, n := range raw4bppSizes {
		if len(b) == n {
			return true
		}
	}
	return false
}

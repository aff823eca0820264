// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package px

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Container header constants
const (
	// MagicPKDPX identifies a PKDPX container.
	MagicPKDPX = "PKDPX"
	// MagicAT4PX identifies an AT4PX container.
	MagicAT4PX = "AT4PX"

	// HeaderSizePKDPX is the PKDPX header size: magic, u16 container length,
	// control flags, u32 decompressed length.
	HeaderSizePKDPX = 0x14
	// HeaderSizeAT4PX is the AT4PX header size: magic, u16 container length,
	// control flags, u16 decompressed length.
	HeaderSizeAT4PX = 0x12
)

var (
	// ErrCorrupt is returned when a compressed payload is internally inconsistent.
	ErrCorrupt = errors.New("px: corrupt data")

	// ErrNotContainer is returned when data does not start with a known container magic.
	ErrNotContainer = errors.New("px: not a PX container")

	// ErrTooLarge is returned when data cannot be described by a container header.
	ErrTooLarge = errors.New("px: data too large for container")
)

// CorruptError describes where a compressed payload stopped making sense.
type CorruptError struct {
	Offset int
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("px: corrupt data at offset 0x%X: %s", e.Offset, e.Reason)
}

// Is reports whether target is ErrCorrupt.
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

// Kind identifies a PX container variant.
type Kind int

const (
	// KindNone means the data is not a PX container.
	KindNone Kind = iota
	// KindPKDPX is a PKDPX container (32-bit decompressed length).
	KindPKDPX
	// KindAT4PX is an AT4PX container (16-bit decompressed length).
	KindAT4PX
)

func (k Kind) String() string {
	switch k {
	case KindPKDPX:
		return MagicPKDPX
	case KindAT4PX:
		return MagicAT4PX
	default:
		return "none"
	}
}

// Header is the parsed header of a PX container.
type Header struct {
	Kind               Kind
	ContainerLength    uint16 // header plus compressed stream
	Flags              [FlagCount]byte
	DecompressedLength uint32
}

// Size returns the header size in bytes for the header's kind.
func (h *Header) Size() int {
	if h.Kind == KindAT4PX {
		return HeaderSizeAT4PX
	}
	return HeaderSizePKDPX
}

// Detect returns the container kind data starts with.
func Detect(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, []byte(MagicPKDPX)):
		return KindPKDPX
	case bytes.HasPrefix(data, []byte(MagicAT4PX)):
		return KindAT4PX
	default:
		return KindNone
	}
}

// ReadHeader parses a container header.
func ReadHeader(data []byte) (*Header, error) {
	kind := Detect(data)
	if kind == KindNone {
		return nil, ErrNotContainer
	}

	h := &Header{Kind: kind}
	if len(data) < h.Size() {
		return nil, &CorruptError{Offset: len(data), Reason: fmt.Sprintf("truncated %s header", kind)}
	}

	h.ContainerLength = binary.LittleEndian.Uint16(data[5:7])
	copy(h.Flags[:], data[7:16])
	if kind == KindAT4PX {
		h.DecompressedLength = uint32(binary.LittleEndian.Uint16(data[16:18]))
	} else {
		h.DecompressedLength = binary.LittleEndian.Uint32(data[16:20])
	}

	return h, nil
}

// Decode decompresses a PKDPX or AT4PX container.
func Decode(data []byte) ([]byte, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	end := int(h.ContainerLength)
	if end < h.Size() {
		return nil, &CorruptError{Offset: 5, Reason: fmt.Sprintf("container length %d shorter than header", end)}
	}
	if end > len(data) {
		return nil, &CorruptError{Offset: 5, Reason: fmt.Sprintf("container length %d exceeds data length %d", end, len(data))}
	}

	out, err := Decompress(data[h.Size():end], h.Flags[:])
	if err != nil {
		var ce *CorruptError
		if errors.As(err, &ce) {
			ce.Offset += h.Size()
		}
		return nil, fmt.Errorf("decompress %s: %w", h.Kind, err)
	}

	if uint32(len(out)) != h.DecompressedLength {
		return nil, &CorruptError{
			Offset: h.Size(),
			Reason: fmt.Sprintf("decompressed size mismatch: expected %d, got %d", h.DecompressedLength, len(out)),
		}
	}

	return out, nil
}

// EncodePKDPX compresses data into a PKDPX container.
func EncodePKDPX(data []byte) ([]byte, error) {
	return encode(KindPKDPX, data)
}

// EncodeAT4PX compresses data into an AT4PX container.
func EncodeAT4PX(data []byte) ([]byte, error) {
	if len(data) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes exceeds AT4PX length field", ErrTooLarge, len(data))
	}
	return encode(KindAT4PX, data)
}

func encode(kind Kind, data []byte) ([]byte, error) {
	flags, stream := Compress(data)

	h := Header{Kind: kind, DecompressedLength: uint32(len(data))}
	total := h.Size() + len(stream)
	if total > math.MaxUint16 {
		return nil, fmt.Errorf("%w: compressed container is %d bytes", ErrTooLarge, total)
	}

	out := make([]byte, h.Size(), total)
	copy(out, kind.String())
	binary.LittleEndian.PutUint16(out[5:7], uint16(total))
	copy(out[7:16], flags)
	if kind == KindAT4PX {
		binary.LittleEndian.PutUint16(out[16:18], uint16(len(data)))
	} else {
		binary.LittleEndian.PutUint32(out[16:20], uint32(len(data)))
	}

	return append(out, stream...), nil
}

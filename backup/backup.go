// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package backup writes compressed snapshots of pack files before they are
// overwritten, and reads them back.
//
// A snapshot is a single compressed frame holding the pack bytes. The codec
// is recognised from the frame magic, so Read needs no sidecar metadata.
package backup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the snapshot compression.
type Codec string

const (
	None Codec = "none"
	Zstd Codec = "zstd"
	LZ4  Codec = "lz4"
)

var (
	// ErrUnknownCodec is returned for a codec name or frame magic that is not recognised.
	ErrUnknownCodec = errors.New("backup: unknown codec")

	// ErrDisabled is returned when writing a snapshot with codec None.
	ErrDisabled = errors.New("backup: backups disabled")
)

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// ParseCodec returns the codec with the given name. The empty string is Zstd.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(s); c {
	case "":
		return Zstd, nil
	case None, Zstd, LZ4:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCodec, s)
}

// Ext returns the file suffix appended to a pack path.
func (c Codec) Ext() string {
	switch c {
	case Zstd:
		return ".bak.zst"
	case LZ4:
		return ".bak.lz4"
	}
	return ""
}

// Path returns where the snapshot of pack is stored.
func Path(pack string, c Codec) string {
	return pack + c.Ext()
}

// Write compresses data into w.
func Write(w io.Writer, data []byte, c Codec) error {
	switch c {
	case Zstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return fmt.Errorf("write zstd frame: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("close zstd encoder: %w", err)
		}
		return nil
	case LZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("write lz4 frame: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("close lz4 writer: %w", err)
		}
		return nil
	case None:
		return ErrDisabled
	}
	return fmt.Errorf("%w: %q", ErrUnknownCodec, string(c))
}

// Read decompresses a snapshot, detecting the codec from its magic.
func Read(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("read snapshot magic: %w", err)
	}

	switch {
	case bytes.Equal(magic, zstdMagic):
		dec, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		data, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("read zstd frame: %w", err)
		}
		return data, nil
	case bytes.Equal(magic, lz4Magic):
		data, err := io.ReadAll(lz4.NewReader(br))
		if err != nil {
			return nil, fmt.Errorf("read lz4 frame: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: magic % X", ErrUnknownCodec, magic)
}

// WriteFile stores a snapshot of data beside pack and returns its path.
func WriteFile(pack string, data []byte, c Codec) (string, error) {
	if c == None {
		return "", ErrDisabled
	}
	path := Path(pack, c)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if err := Write(f, data, c); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close backup: %w", err)
	}
	return path, nil
}

// ReadFile reads the snapshot at path.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func put32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

// examplePack is a 70-byte sentinel-layout pack with offsets 24, 40, 58, 70.
func examplePack() []byte {
	b := make([]byte, 70)
	put32(b, 4, 3)
	for i, off := range []uint32{24, 40, 58, 70} {
		put32(b, 8+i*4, off)
	}
	copy(b[24:], pattern(46, 0x10))
	return b
}

// gamePack builds a default-layout pack holding a 5-byte and a 20-byte entry.
func gamePack() []byte {
	b := bytes.Repeat([]byte{0xFF}, 80)
	put32(b, 0, 0)
	put32(b, 4, 2)
	put32(b, 8, 32)
	put32(b, 12, 5)
	put32(b, 16, 48)
	put32(b, 20, 20)
	put32(b, 24, 0)
	put32(b, 28, 0)
	copy(b[32:], "hello")
	copy(b[48:], pattern(20, 0x80))
	return b
}

func entries(t *testing.T, a *Archive) [][]byte {
	t.Helper()
	var out [][]byte
	for _, e := range a.All() {
		out = append(out, e)
	}
	return out
}

func TestParseSentinelExample(t *testing.T) {
	data := examplePack()
	a, err := ParseFormat(data, SentinelFormat())
	require.NoError(t, err)
	require.Equal(t, 3, a.Len())

	want := []int{16, 18, 12}
	for i, n := range want {
		e, err := a.Entry(i)
		require.NoError(t, err)
		assert.Len(t, e, n, "entry %d", i)
	}

	first, _ := a.Entry(0)
	assert.Equal(t, pattern(46, 0x10)[:16], first)

	assert.Equal(t, data, a.Bytes(), "unmodified archive must serialize byte-identical")
}

func TestParseGamePack(t *testing.T) {
	data := gamePack()
	a, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 2, a.Len())

	got := entries(t, a)
	assert.Equal(t, []byte("hello"), got[0])
	assert.Equal(t, pattern(20, 0x80), got[1])
	assert.Equal(t, data, a.Bytes())
}

func TestNewArchiveMatchesGameLayout(t *testing.T) {
	a, err := New(DefaultFormat())
	require.NoError(t, err)

	_, err = a.Append([]byte("hello"))
	require.NoError(t, err)
	idx, err := a.Append(pattern(20, 0x80))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	assert.Equal(t, gamePack(), a.Bytes())
	assert.Equal(t, len(gamePack()), a.Size())
}

func TestParsePreservesDataStart(t *testing.T) {
	b := bytes.Repeat([]byte{0xFF}, 80)
	put32(b, 0, 0)
	put32(b, 4, 1)
	put32(b, 8, 64)
	put32(b, 12, 4)
	put32(b, 16, 0)
	put32(b, 20, 0)
	copy(b[64:], "DATA")

	a, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, b, a.Bytes())

	_, err = a.Append([]byte("MORE"))
	require.NoError(t, err)
	table := a.Table()
	assert.Equal(t, 64, table[0].Offset)
	assert.Equal(t, 80, table[1].Offset)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name   string
		data   func() []byte
		format Format
	}{
		{"too small", func() []byte { return make([]byte, 15) }, DefaultFormat()},
		{"sentinel too small", func() []byte { return make([]byte, 11) }, SentinelFormat()},
		{"bad magic", func() []byte {
			b := gamePack()
			put32(b, 0, 0xDEADBEEF)
			return b
		}, DefaultFormat()},
		{"too many entries", func() []byte {
			b := gamePack()
			put32(b, 4, 10001)
			return b
		}, DefaultFormat()},
		{"table overrun", func() []byte {
			b := gamePack()
			put32(b, 4, 9)
			return b
		}, DefaultFormat()},
		{"offset inside table", func() []byte {
			b := gamePack()
			put32(b, 8, 8)
			return b
		}, DefaultFormat()},
		{"non-monotonic", func() []byte {
			b := gamePack()
			put32(b, 16, 32)
			put32(b, 8, 48)
			return b
		}, DefaultFormat()},
		{"length past end", func() []byte {
			b := gamePack()
			put32(b, 20, 33)
			return b
		}, DefaultFormat()},
		{"offset past end", func() []byte {
			b := gamePack()
			put32(b, 16, 0x1000)
			return b
		}, DefaultFormat()},
		{"sentinel past end", func() []byte {
			b := examplePack()
			put32(b, 20, 71)
			return b
		}, SentinelFormat()},
		{"sentinel non-monotonic", func() []byte {
			b := examplePack()
			put32(b, 12, 60)
			return b
		}, SentinelFormat()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormat(tt.data(), tt.format)
			require.ErrorIs(t, err, ErrMalformed)

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.NotEmpty(t, fe.Reason)
		})
	}
}

func TestParseTruncated(t *testing.T) {
	// The last entry ends at byte 68; only trailing padding may be cut.
	full := gamePack()
	for n := 0; n < 68; n++ {
		_, err := Parse(full[:n])
		require.ErrorIs(t, err, ErrMalformed, "truncated to %d bytes", n)
	}

	example := examplePack()
	for n := 0; n < len(example); n++ {
		_, err := ParseFormat(example[:n], SentinelFormat())
		require.ErrorIs(t, err, ErrMalformed, "truncated to %d bytes", n)
	}
}

func TestParseIgnoresMagicWhenUnchecked(t *testing.T) {
	b := examplePack()
	put32(b, 0, 0x4B434150)

	a, err := ParseFormat(b, SentinelFormat())
	require.NoError(t, err)
	assert.Equal(t, uint32(0x4B434150), a.Magic())
	assert.Equal(t, b, a.Bytes())
}

func TestEntryReturnsCopy(t *testing.T) {
	a, err := Parse(gamePack())
	require.NoError(t, err)

	e, err := a.Entry(0)
	require.NoError(t, err)
	e[0] = 'X'

	again, err := a.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), again)

	src := []byte("owned")
	require.NoError(t, a.Replace(0, src))
	src[0] = 'X'
	again, _ = a.Entry(0)
	assert.Equal(t, []byte("owned"), again)
}

func TestIndexErrors(t *testing.T) {
	a, err := Parse(gamePack())
	require.NoError(t, err)

	_, err = a.Entry(2)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = a.Entry(-1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	require.ErrorIs(t, a.Replace(2, []byte("x")), ErrIndexOutOfRange)
	require.ErrorIs(t, a.Remove(2), ErrIndexOutOfRange)
	require.ErrorIs(t, a.Insert(3, []byte("x")), ErrIndexOutOfRange)
	require.NoError(t, a.Insert(2, []byte("tail")))

	var ie *IndexError
	err = a.Remove(7)
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "remove", ie.Op)
	assert.Equal(t, 7, ie.Index)
}

func TestInsertRemoveShiftIndices(t *testing.T) {
	a, err := New(DefaultFormat())
	require.NoError(t, err)
	for _, s := range []string{"a", "b", "c"} {
		_, err := a.Append([]byte(s))
		require.NoError(t, err)
	}

	require.NoError(t, a.Insert(1, []byte("x")))
	assert.Equal(t, [][]byte{[]byte("a"), []byte("x"), []byte("b"), []byte("c")}, entries(t, a))

	require.NoError(t, a.Remove(0))
	assert.Equal(t, [][]byte{[]byte("x"), []byte("b"), []byte("c")}, entries(t, a))

	// Index i after removing j < i refers to what was i+1.
	require.NoError(t, a.Remove(1))
	e, _ := a.Entry(1)
	assert.Equal(t, []byte("c"), e)
}

func TestReplaceResize(t *testing.T) {
	for _, f := range []Format{DefaultFormat(), SentinelFormat()} {
		t.Run(f.Layout.String(), func(t *testing.T) {
			a, err := New(f)
			require.NoError(t, err)
			for i := 0; i < 4; i++ {
				_, err := a.Append(pattern(10+i, byte(i)))
				require.NoError(t, err)
			}

			require.NoError(t, a.Replace(1, pattern(300, 7)))
			require.NoError(t, a.Replace(2, nil))

			b, err := ParseFormat(a.Bytes(), f)
			require.NoError(t, err)
			assert.Equal(t, entries(t, a), entries(t, b))
			assert.Equal(t, a.Size(), len(a.Bytes()))
		})
	}
}

func TestClearKeepsHeader(t *testing.T) {
	b := examplePack()
	put32(b, 0, 7)
	a, err := ParseFormat(b, SentinelFormat())
	require.NoError(t, err)

	a.Clear()
	assert.Zero(t, a.Len())
	assert.Equal(t, uint32(7), a.Magic())

	_, err = a.Append([]byte("new"))
	require.NoError(t, err)
	out, err := ParseFormat(a.Bytes(), SentinelFormat())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}

func TestTooLarge(t *testing.T) {
	a, err := New(DefaultFormat())
	require.NoError(t, err)
	a.dataStart = maxArchiveSize + 1 - 32

	_, err = a.Append(make([]byte, 16))
	require.NoError(t, err)
	_, err = a.Append([]byte{1})
	require.ErrorIs(t, err, ErrTooLarge)
	require.ErrorIs(t, a.Replace(0, make([]byte, 17)), ErrTooLarge)
	assert.Equal(t, 1, a.Len())

	// An unaligned start pads the first entry to the next boundary.
	a.Clear()
	a.dataStart = maxArchiveSize - 16
	_, err = a.Append([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, maxArchiveSize-15, a.Size())
	require.ErrorIs(t, a.Replace(0, make([]byte, 2)), ErrTooLarge)
}

func TestMaxEntries(t *testing.T) {
	f := DefaultFormat()
	a, err := New(f)
	require.NoError(t, err)
	for i := 0; i < f.MaxEntries; i++ {
		_, err := a.Append([]byte{byte(i)})
		require.NoError(t, err)
	}

	_, err = a.Append([]byte{1})
	require.ErrorIs(t, err, ErrTooLarge)
	require.ErrorIs(t, a.Insert(0, []byte{1}), ErrTooLarge)
	assert.Equal(t, f.MaxEntries, a.Len())

	b, err := ParseFormat(a.Bytes(), f)
	require.NoError(t, err)
	assert.Equal(t, f.MaxEntries, b.Len())

	// Removing one makes room again.
	require.NoError(t, a.Remove(0))
	_, err = a.Append([]byte{1})
	require.NoError(t, err)

	f.MaxEntries = 0
	u, err := New(f)
	require.NoError(t, err)
	for i := 0; i <= DefaultFormat().MaxEntries; i++ {
		_, err := u.Append([]byte{byte(i)})
		require.NoError(t, err)
	}
}

func TestUnalignedDataStart(t *testing.T) {
	b := bytes.Repeat([]byte{0xFF}, 80)
	put32(b, 0, 0)
	put32(b, 4, 2)
	put32(b, 8, 36)
	put32(b, 12, 5)
	put32(b, 16, 48)
	put32(b, 20, 20)
	put32(b, 24, 0)
	put32(b, 28, 0)
	copy(b[36:], "hello")
	copy(b[48:], pattern(20, 0x80))

	a, err := Parse(b)
	require.NoError(t, err)

	table := a.Table()
	assert.Equal(t, 36, table[0].Offset)
	assert.Equal(t, 12, table[0].Padded)
	assert.Equal(t, 48, table[1].Offset)
	assert.Equal(t, b, a.Bytes())
	assert.Equal(t, len(b), a.Size())

	// Entries after the first stay on 16-byte boundaries as the archive changes.
	require.NoError(t, a.Replace(0, pattern(30, 1)))
	_, err = a.Append([]byte("tail"))
	require.NoError(t, err)
	data := a.Bytes()
	assert.Equal(t, len(data), a.Size())
	for i, row := range a.Table()[1:] {
		assert.Zero(t, row.Offset%16, "entry %d not aligned", i+1)
	}
	assert.Zero(t, len(data)%16)

	c, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, entries(t, a), entries(t, c))
}

func TestValidate(t *testing.T) {
	a, err := New(DefaultFormat())
	require.NoError(t, err)
	require.ErrorIs(t, a.Validate(), ErrEmptyArchive)

	_, err = a.Append([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, a.Validate())

	_, err = a.Append(nil)
	require.NoError(t, err)
	err = a.Validate()
	require.ErrorIs(t, err, ErrEmptyEntry)
	assert.Contains(t, err.Error(), "entry 1")
}

func TestFormatValidate(t *testing.T) {
	require.NoError(t, DefaultFormat().Validate())
	require.NoError(t, SentinelFormat().Validate())

	f := SentinelFormat()
	f.Alignment = 16
	require.ErrorIs(t, f.Validate(), ErrInvalidFormat)

	f = DefaultFormat()
	f.Alignment = 12
	require.ErrorIs(t, f.Validate(), ErrInvalidFormat)

	f = DefaultFormat()
	f.HeaderAlignment = 0
	require.ErrorIs(t, f.Validate(), ErrInvalidFormat)

	_, err := New(f)
	require.ErrorIs(t, err, ErrInvalidFormat)

	l, err := ParseLayout("offset-sentinel")
	require.NoError(t, err)
	assert.Equal(t, LayoutOffsetSentinel, l)
	_, err = ParseLayout("zip")
	require.ErrorIs(t, err, ErrInvalidFormat)
}

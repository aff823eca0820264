// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gameRoot lays out an extracted filesystem holding some of the known packs,
// with directory names in a different case than the known paths.
func gameRoot(t testing.TB) string {
	t.Helper()
	root := t.TempDir()
	for _, rel := range []string{"effect/EFFECT.BIN", "MONSTER/monster.bin", "MONSTER/m_attack.bin", "FONT/kanji.dat"} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, gamePack(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestNormalizePackPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"MONSTER/monster.bin", "MONSTER/MONSTER.BIN"},
		{"monster\\m_attack.bin", "MONSTER/M_ATTACK.BIN"},
		{"/BALANCE//m_level.bin", "BALANCE/M_LEVEL.BIN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePackPath(tt.in))
	}
}

func TestOpenPackSet(t *testing.T) {
	root := gameRoot(t)
	set, err := OpenPackSet(root, nil, DefaultFormat())
	require.NoError(t, err)

	assert.Equal(t, root, set.Root())
	assert.Equal(t, []string{"EFFECT/effect.bin", "MONSTER/monster.bin", "MONSTER/m_attack.bin"}, set.Paths())
	assert.True(t, set.Has("effect/effect.bin"))
	assert.True(t, set.Has("MONSTER\\M_ATTACK.BIN"))
	assert.False(t, set.Has("DUNGEON/dungeon.bin"))

	a, err := set.Archive("MONSTER/monster.bin")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())

	file, err := set.Resolve("EFFECT/effect.bin")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "effect", "EFFECT.BIN"), file)

	_, err = set.Archive("BALANCE/m_level.bin")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestPackSetSave(t *testing.T) {
	root := gameRoot(t)
	set, err := OpenPackSet(root, []string{"MONSTER/monster.bin"}, DefaultFormat())
	require.NoError(t, err)

	a, err := set.Archive("MONSTER/monster.bin")
	require.NoError(t, err)
	require.NoError(t, a.Replace(1, []byte("patched")))
	require.NoError(t, set.Save("monster/monster.bin"))

	b, err := Open(filepath.Join(root, "MONSTER", "monster.bin"))
	require.NoError(t, err)
	e, _ := b.Entry(1)
	assert.Equal(t, []byte("patched"), e)
}

func TestOpenPackSetErrors(t *testing.T) {
	_, err := OpenPackSet(t.TempDir(), nil, DefaultFormat())
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, fs.ErrNotExist)

	root := gameRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "MONSTER", "monster.bin"), []byte("short"), 0644))
	_, err = OpenPackSet(root, nil, DefaultFormat())
	require.ErrorIs(t, err, ErrMalformed)
}

func BenchmarkPackSetLookup(b *testing.B) {
	set, err := OpenPackSet(gameRoot(b), nil, DefaultFormat())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set.Has("MONSTER/monster.bin")
		set.Has("monster\\m_attack.bin")
		set.Has("DUNGEON/dungeon.bin")
	}
}

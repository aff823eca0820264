// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprsokr/go-binpack"
	"github.com/suprsokr/go-binpack/backup"
	"github.com/suprsokr/go-binpack/internal/config"
	"github.com/suprsokr/go-binpack/px"
)

// run executes the root command with args and returns its output. Flag
// variables are reset first since cobra keeps them between runs.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfgFile, rootDir, verbose = "", "", false
	exportDecompress, importOut = false, ""
	entryDecompress, entryCompress, entryAt, entryOut = false, false, -1, ""
	configForce = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTestPack(t *testing.T, path string) {
	t.Helper()
	a, err := binpack.New(binpack.DefaultFormat())
	require.NoError(t, err)
	_, err = a.Append([]byte("plain entry"))
	require.NoError(t, err)
	packed, err := px.EncodePKDPX(bytes.Repeat([]byte("frame"), 40))
	require.NoError(t, err)
	_, err = a.Append(packed)
	require.NoError(t, err)
	require.NoError(t, a.Save(path))
}

func TestListAndInfo(t *testing.T) {
	pack := filepath.Join(t.TempDir(), "effect.bin")
	writeTestPack(t, pack)

	out, err := run(t, "list", pack)
	require.NoError(t, err)
	assert.Contains(t, out, "PKDPX")
	assert.Contains(t, out, "0x00000020")

	out, err = run(t, "info", pack)
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 2")
	assert.Contains(t, out, "sha256:")
	assert.Contains(t, out, "offset-length")
}

func TestEntryCommands(t *testing.T) {
	dir := t.TempDir()
	pack := filepath.Join(dir, "effect.bin")
	writeTestPack(t, pack)

	src := filepath.Join(dir, "new.bin")
	require.NoError(t, os.WriteFile(src, []byte("added entry"), 0644))

	_, err := run(t, "entry", "add", pack, src, "--at", "0")
	require.NoError(t, err)

	a, err := binpack.Open(pack)
	require.NoError(t, err)
	require.Equal(t, 3, a.Len())
	e, _ := a.Entry(0)
	assert.Equal(t, []byte("added entry"), e)

	out := filepath.Join(dir, "sprite.bin")
	_, err = run(t, "entry", "export", pack, "2", out, "-d")
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("frame"), 40), data)

	_, err = run(t, "entry", "remove", pack, "1")
	require.NoError(t, err)
	a, err = binpack.Open(pack)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())

	_, err = run(t, "entry", "remove", pack, "5")
	require.ErrorIs(t, err, binpack.ErrIndexOutOfRange)

	_, err = run(t, "entry", "remove", pack, "x")
	require.Error(t, err)
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	pack := filepath.Join(dir, "effect.bin")
	writeTestPack(t, pack)

	outDir := filepath.Join(dir, "entries")
	out, err := run(t, "export", pack, outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 entries")

	rebuilt := filepath.Join(dir, "rebuilt.bin")
	_, err = run(t, "import", pack, outDir, "--out", rebuilt)
	require.NoError(t, err)

	want, err := os.ReadFile(pack)
	require.NoError(t, err)
	got, err := os.ReadFile(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	pack := filepath.Join(dir, "effect.bin")
	writeTestPack(t, pack)
	original, err := os.ReadFile(pack)
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.toml")
	c := config.DefaultConfig()
	c.Backup = string(backup.LZ4)
	require.NoError(t, config.Write(cfgPath, c, false))

	_, err = run(t, "--config", cfgPath, "entry", "remove", pack, "0")
	require.NoError(t, err)

	snapshot := backup.Path(pack, backup.LZ4)
	_, err = run(t, "restore", snapshot, pack)
	require.NoError(t, err)

	restored, err := os.ReadFile(pack)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestRestoreKeepsSnapshotBytes(t *testing.T) {
	dir := t.TempDir()
	pack := filepath.Join(dir, "effect.bin")
	writeTestPack(t, pack)

	// Padding that differs from the fill byte still parses but would not
	// survive a re-encode.
	snapshot, err := os.ReadFile(pack)
	require.NoError(t, err)
	snapshot[32+len("plain entry")] = 0x00
	_, err = binpack.Parse(snapshot)
	require.NoError(t, err)

	backupPath, err := backup.WriteFile(pack, snapshot, backup.Zstd)
	require.NoError(t, err)

	_, err = run(t, "restore", backupPath, pack)
	require.NoError(t, err)

	restored, err := os.ReadFile(pack)
	require.NoError(t, err)
	assert.Equal(t, snapshot, restored)

	// A snapshot that does not parse leaves the pack alone.
	bad, err := backup.WriteFile(filepath.Join(dir, "bad.bin"), []byte("short"), backup.Zstd)
	require.NoError(t, err)
	_, err = run(t, "restore", bad, pack)
	require.ErrorIs(t, err, binpack.ErrMalformed)
	restored, err = os.ReadFile(pack)
	require.NoError(t, err)
	assert.Equal(t, snapshot, restored)
}

func TestPacks(t *testing.T) {
	root := t.TempDir()
	writeTestPack(t, filepath.Join(root, "effect", "EFFECT.BIN"))

	out, err := run(t, "packs", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "EFFECT/effect.bin")
	assert.Contains(t, out, "5 pack(s) not found")

	_, err = run(t, "packs")
	require.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "binpack.toml")

	_, err := run(t, "--config", path, "config", "init")
	require.NoError(t, err)
	_, err = run(t, "--config", path, "config", "init")
	require.Error(t, err)
	_, err = run(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)

	out, err := run(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Contains(t, out, "log_level")
}

// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// KnownPackFiles are the pack files shipped in the game's filesystem, as
// paths relative to the filesystem root.
var KnownPackFiles = []string{
	"EFFECT/effect.bin",
	"DUNGEON/dungeon.bin",
	"MONSTER/monster.bin",
	"MONSTER/m_attack.bin",
	"MONSTER/m_ground.bin",
	"BALANCE/m_level.bin",
}

// normalizePackPath folds a pack path for lookup: forward slashes, no
// leading or doubled separators, upper case.
func normalizePackPath(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for strings.Contains(normalized, "//") {
		normalized = strings.ReplaceAll(normalized, "//", "/")
	}
	normalized = strings.TrimPrefix(normalized, "/")
	return strings.ToUpper(normalized)
}

// PackSet is the set of packs found under an extracted game filesystem.
type PackSet struct {
	root     string
	paths    []string            // pack paths in open order
	files    map[string]string   // normalized pack path -> file on disk
	archives map[string]*Archive // normalized pack path -> archive
}

// OpenPackSet opens each of paths found under root, matching names without
// regard to case or separator style. Paths that do not exist are skipped;
// a nil paths opens KnownPackFiles. It fails if no pack is found.
func OpenPackSet(root string, paths []string, f Format) (*PackSet, error) {
	if paths == nil {
		paths = KnownPackFiles
	}

	onDisk, err := indexFiles(root)
	if err != nil {
		return nil, err
	}

	set := &PackSet{
		root:     root,
		files:    make(map[string]string),
		archives: make(map[string]*Archive),
	}
	for _, path := range paths {
		key := normalizePackPath(path)
		if _, dup := set.archives[key]; dup {
			continue
		}
		file, ok := onDisk[key]
		if !ok {
			continue
		}
		a, err := OpenFormat(file, f)
		if err != nil {
			return nil, fmt.Errorf("open pack %s: %w", path, err)
		}
		set.paths = append(set.paths, path)
		set.files[key] = file
		set.archives[key] = a
	}

	if len(set.paths) == 0 {
		return nil, &IOError{Op: "find packs", Path: root, Err: fs.ErrNotExist}
	}
	return set, nil
}

// indexFiles maps the normalized relative path of every regular file under
// root to its path on disk.
func indexFiles(root string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[normalizePackPath(filepath.ToSlash(rel))] = path
		return nil
	})
	if err != nil {
		return nil, &IOError{Op: "scan", Path: root, Err: err}
	}
	return files, nil
}

// Root returns the filesystem root the set was opened from.
func (p *PackSet) Root() string { return p.root }

// Paths returns the pack paths that were found, in open order.
func (p *PackSet) Paths() []string {
	return append([]string(nil), p.paths...)
}

// Has reports whether path is in the set.
func (p *PackSet) Has(path string) bool {
	_, ok := p.archives[normalizePackPath(path)]
	return ok
}

// Archive returns the archive for path.
func (p *PackSet) Archive(path string) (*Archive, error) {
	a, ok := p.archives[normalizePackPath(path)]
	if !ok {
		return nil, &IOError{Op: "find pack", Path: path, Err: fs.ErrNotExist}
	}
	return a, nil
}

// Resolve returns the file on disk holding path.
func (p *PackSet) Resolve(path string) (string, error) {
	file, ok := p.files[normalizePackPath(path)]
	if !ok {
		return "", &IOError{Op: "find pack", Path: path, Err: fs.ErrNotExist}
	}
	return file, nil
}

// Save writes the archive for path back to its file.
func (p *PackSet) Save(path string) error {
	a, err := p.Archive(path)
	if err != nil {
		return err
	}
	file, err := p.Resolve(path)
	if err != nil {
		return err
	}
	return a.Save(file)
}

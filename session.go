// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/suprsokr/go-binpack/backup"
	"github.com/suprsokr/go-binpack/filetype"
	"github.com/suprsokr/go-binpack/px"
)

const defaultWorkers = 4

// Session is an editing session over one pack: the archive, where it came
// from, and which entries changed since it was loaded or last saved.
//
// A Session is not safe for concurrent use.
type Session struct {
	archive *Archive
	format  Format
	path    string

	modified        bool
	modifiedIndices map[int]struct{}

	loadedDigest  digest.Digest
	loadedSize    int
	currentDigest digest.Digest // empty when stale

	logger  *log.Logger
	workers int
	backup  backup.Codec
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Sessions discard logs by default.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithFormat sets the pack format used to parse and write.
func WithFormat(f Format) Option {
	return func(s *Session) { s.format = f }
}

// WithWorkers bounds the number of concurrent writes in ExportAll.
func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithBackup snapshots an existing pack file before Save overwrites it.
func WithBackup(c backup.Codec) Option {
	return func(s *Session) { s.backup = c }
}

// NewSession returns a session with no archive loaded.
func NewSession(opts ...Option) *Session {
	s := &Session{
		format:          DefaultFormat(),
		modifiedIndices: make(map[int]struct{}),
		logger:          log.New(io.Discard),
		workers:         defaultWorkers,
		backup:          backup.None,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new, empty, unsaved archive.
func (s *Session) Create() error {
	a, err := New(s.format)
	if err != nil {
		return err
	}
	s.archive = a
	s.path = ""
	s.loadedDigest = ""
	s.loadedSize = 0
	s.markAll(true)
	return nil
}

// Load reads the pack at path and returns its entry count.
func (s *Session) Load(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &IOError{Op: "read", Path: path, Err: err}
	}
	n, err := s.LoadBytes(data)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}
	s.path = path
	s.logger.Debug("loaded pack", "path", path, "entries", n, "size", len(data))
	return n, nil
}

// LoadBytes parses data as the session's archive. Packs without entries are
// rejected because the game never ships them.
func (s *Session) LoadBytes(data []byte) (int, error) {
	a, err := ParseFormat(data, s.format)
	if err != nil {
		return 0, err
	}
	if a.Len() == 0 {
		return 0, malformed(4, -1, "pack has no entries")
	}

	s.archive = a
	s.path = ""
	s.markAll(false)
	s.loadedDigest = digest.FromBytes(data)
	s.loadedSize = len(data)
	s.currentDigest = s.loadedDigest
	return a.Len(), nil
}

// Save writes the archive back to the path it was loaded from or last saved to.
func (s *Session) Save() error {
	if s.archive == nil {
		return ErrNoArchive
	}
	if s.path == "" {
		return fmt.Errorf("%w: no file path, use SaveAs", ErrNoArchive)
	}
	return s.SaveAs(s.path)
}

// SaveAs writes the archive to path, which becomes the session's path.
func (s *Session) SaveAs(path string) error {
	if s.archive == nil {
		return ErrNoArchive
	}
	if err := s.archive.Validate(); err != nil {
		return err
	}

	if s.backup != backup.None {
		if err := s.snapshot(path); err != nil {
			return err
		}
	}

	data := s.archive.Bytes()
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	s.path = path
	s.markAll(false)
	s.loadedDigest = digest.FromBytes(data)
	s.loadedSize = len(data)
	s.currentDigest = s.loadedDigest
	s.logger.Debug("saved pack", "path", path, "entries", s.archive.Len(), "digest", s.loadedDigest)
	return nil
}

// snapshot backs up the file at path if one exists.
func (s *Session) snapshot(path string) error {
	old, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &IOError{Op: "read", Path: path, Err: err}
	}
	bak, err := backup.WriteFile(path, old, s.backup)
	if err != nil {
		return &IOError{Op: "backup", Path: path, Err: err}
	}
	s.logger.Debug("wrote backup", "path", bak, "codec", s.backup)
	return nil
}

// Import replaces entry i with data, PKDPX-compressing it first when
// compress is set and data is not already PKDPX. It returns the label of the
// stored content.
func (s *Session) Import(i int, data []byte, compress bool) (filetype.Label, error) {
	if s.archive == nil {
		return filetype.Unknown, ErrNoArchive
	}
	data, err := s.prepare(data, compress)
	if err != nil {
		return filetype.Unknown, err
	}
	if err := s.archive.Replace(i, data); err != nil {
		return filetype.Unknown, err
	}
	s.touch(i)
	return filetype.Detect(data), nil
}

// Add inserts data at index at, or appends it when at is negative, and
// returns the new entry's index.
func (s *Session) Add(data []byte, at int, compress bool) (int, error) {
	if s.archive == nil {
		return -1, ErrNoArchive
	}
	data, err := s.prepare(data, compress)
	if err != nil {
		return -1, err
	}
	if at < 0 {
		at = s.archive.Len()
	}
	if err := s.archive.Insert(at, data); err != nil {
		return -1, err
	}
	s.shift(at, 1)
	s.touch(at)
	return at, nil
}

// Remove deletes entry i.
func (s *Session) Remove(i int) error {
	if s.archive == nil {
		return ErrNoArchive
	}
	if err := s.archive.Remove(i); err != nil {
		return err
	}
	delete(s.modifiedIndices, i)
	s.shift(i+1, -1)
	s.modified = true
	s.currentDigest = ""
	return nil
}

func (s *Session) prepare(data []byte, compress bool) ([]byte, error) {
	if !compress || px.Detect(data) == px.KindPKDPX {
		return data, nil
	}
	out, err := px.EncodePKDPX(data)
	if err != nil {
		return nil, fmt.Errorf("compress entry: %w", err)
	}
	return out, nil
}

// Data returns a copy of entry i, decompressed when decompress is set and
// the entry is a PX container.
func (s *Session) Data(i int, decompress bool) ([]byte, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	data, err := s.archive.Entry(i)
	if err != nil {
		return nil, err
	}
	if !decompress {
		return data, nil
	}
	return filetype.DecodeIfCompressed(data)
}

// Info describes entry i.
func (s *Session) Info(i int) (EntryInfo, error) {
	if s.archive == nil {
		return EntryInfo{}, ErrNoArchive
	}
	return s.archive.Info(i)
}

// ExportEntry writes entry i to path.
func (s *Session) ExportEntry(i int, path string, decompress bool) error {
	data, err := s.Data(i, decompress)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// ExportAll writes every entry into dir as entry_NNNN<ext>, the extension
// chosen from the content label, and returns the number written. A
// compressed entry that fails to decode is written as stored.
func (s *Session) ExportAll(ctx context.Context, dir string, decompress bool) (int, error) {
	if s.archive == nil {
		return 0, ErrNoArchive
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, &IOError{Op: "create directory", Path: dir, Err: err}
	}

	entries := make([][]byte, 0, s.archive.Len())
	for _, e := range s.archive.All() {
		entries = append(entries, e)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, data := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, label := data, filetype.Detect(data)
			if decompress {
				res := filetype.Inspect(data)
				if res.Decoded() {
					out = res.Payload
				} else if res.Err != nil {
					s.logger.Warn("writing entry as stored", "index", i, "err", res.Err)
				}
				label = res.ExportLabel()
			}
			path := filepath.Join(dir, exportName(i, len(entries), label))
			if err := os.WriteFile(path, out, 0644); err != nil {
				return &IOError{Op: "write", Path: path, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.logger.Debug("exported entries", "dir", dir, "count", len(entries))
	return len(entries), nil
}

// exportName names entry i of count. Indices are zero-padded to at least
// four digits and to the width of the largest index, so name order is
// index order.
func exportName(i, count int, label filetype.Label) string {
	width := max(4, len(strconv.Itoa(count-1)))
	return fmt.Sprintf("entry_%0*d%s", width, i, label.Ext())
}

// ImportAll replaces every entry with the regular files in dir, in name
// order, and returns the new entry count. An empty directory leaves the
// archive unchanged and returns 0. The loaded header is kept. On error the
// archive is left as it was.
func (s *Session) ImportAll(dir string) (int, error) {
	if s.archive == nil {
		return 0, ErrNoArchive
	}
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return 0, &IOError{Op: "read directory", Path: dir, Err: err}
	}

	var files [][]byte
	for _, de := range dirents {
		if !de.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, &IOError{Op: "read", Path: path, Err: err}
		}
		files = append(files, data)
	}
	if len(files) == 0 {
		return 0, nil
	}

	next := &Archive{format: s.archive.format, magic: s.archive.magic, dataStart: s.archive.dataStart}
	for _, data := range files {
		if _, err := next.Append(data); err != nil {
			return 0, err
		}
	}
	s.archive = next
	s.markAll(true)
	s.logger.Debug("imported entries", "dir", dir, "count", len(files))
	return len(files), nil
}

// Archive returns the loaded archive, or nil.
func (s *Session) Archive() *Archive { return s.archive }

// Path returns the file the session saves to.
func (s *Session) Path() string { return s.path }

// Len returns the number of entries, or 0 with no archive loaded.
func (s *Session) Len() int {
	if s.archive == nil {
		return 0
	}
	return s.archive.Len()
}

// Modified reports whether the archive changed since it was loaded or saved.
func (s *Session) Modified() bool { return s.modified }

// IsModified reports whether entry i changed since it was loaded or saved.
func (s *Session) IsModified(i int) bool {
	_, ok := s.modifiedIndices[i]
	return ok
}

// ModifiedIndices returns the changed entry indices in ascending order.
func (s *Session) ModifiedIndices() []int {
	out := make([]int, 0, len(s.modifiedIndices))
	for i := range s.modifiedIndices {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

// LoadedDigest returns the digest of the file as loaded or last saved.
func (s *Session) LoadedDigest() digest.Digest { return s.loadedDigest }

// LoadedSize returns the size of the file as loaded or last saved.
func (s *Session) LoadedSize() int { return s.loadedSize }

// CurrentDigest returns the digest the archive would have if saved now.
func (s *Session) CurrentDigest() digest.Digest {
	if s.archive == nil {
		return ""
	}
	if s.currentDigest == "" {
		s.currentDigest = s.archive.Digest()
	}
	return s.currentDigest
}

// CurrentSize returns the size the archive would have if saved now.
func (s *Session) CurrentSize() int {
	if s.archive == nil {
		return 0
	}
	return s.archive.Size()
}

func (s *Session) touch(i int) {
	s.modified = true
	s.modifiedIndices[i] = struct{}{}
	s.currentDigest = ""
}

// shift moves every tracked index at or after from by delta.
func (s *Session) shift(from, delta int) {
	moved := make(map[int]struct{}, len(s.modifiedIndices))
	for i := range s.modifiedIndices {
		if i >= from {
			i += delta
		}
		moved[i] = struct{}{}
	}
	s.modifiedIndices = moved
}

// markAll resets tracking. When modified is set every entry is marked.
func (s *Session) markAll(modified bool) {
	s.modified = modified
	s.currentDigest = ""
	clear(s.modifiedIndices)
	if !modified || s.archive == nil {
		return
	}
	for i := range s.archive.Len() {
		s.modifiedIndices[i] = struct{}{}
	}
}

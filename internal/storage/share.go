// Package storage provides sandboxed read access to the configured shares.
// Every path is resolved inside a share root; traversal outside the root is
// rejected before any filesystem call.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/sambee/sambee/internal/config"
)

// ErrPathEscapes marks lookups that would leave the share root.
var ErrPathEscapes = fmt.Errorf("path escapes share")

// Share is one browsable directory tree. Access is read-only: the file
// browser serves and previews files, it never mutates them.
type Share struct {
	name string
	root string
	fs   afero.Fs
}

// Entry is one directory listing row.
type Entry struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	IsDir   bool      `json:"is_dir"`
}

// NewShare creates a share backed by the OS filesystem. The root must exist
// and be a directory.
func NewShare(name, root string) (*Share, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving share root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("share %q: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("share %q root %s is not a directory", name, abs)
	}
	return NewShareWithFs(name, abs, afero.NewReadOnlyFs(afero.NewOsFs())), nil
}

// NewShareWithFs creates a share over an explicit filesystem. Used by tests
// with an in-memory fs.
func NewShareWithFs(name, root string, fs afero.Fs) *Share {
	return &Share{name: name, root: filepath.Clean(root), fs: fs}
}

// Name returns the configured share name.
func (s *Share) Name() string { return s.name }

// Root returns the share root path.
func (s *Share) Root() string { return s.root }

// resolve maps a share-relative path to an absolute one, rejecting anything
// that would land outside the root.
func (s *Share) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s (absolute paths not allowed)", ErrPathEscapes, rel)
	}
	full := filepath.Join(s.root, filepath.Clean(rel))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, rel)
	}
	return full, nil
}

// Stat returns file info for a share-relative path.
func (s *Share) Stat(rel string) (os.FileInfo, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}
	return info, nil
}

// Exists reports whether a share-relative path exists.
func (s *Share) Exists(rel string) (bool, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, path)
}

// Open opens a file for reading.
func (s *Share) Open(rel string) (afero.File, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	return f, nil
}

// ReadFile reads a whole file. maxSize > 0 rejects files above that size
// before any bytes are read.
func (s *Share) ReadFile(rel string, maxSize int64) ([]byte, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 {
		info, err := s.fs.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", rel, err)
		}
		if info.Size() > maxSize {
			return nil, fmt.Errorf("file %s is %d bytes, limit is %d", rel, info.Size(), maxSize)
		}
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, nil
}

// List returns the entries of a directory, directories first, each group
// sorted by name.
func (s *Share) List(rel string) ([]Entry, error) {
	path, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   info.IsDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Store holds the configured shares by name.
type Store struct {
	shares map[string]*Share
}

// NewStore builds a Store from configuration. Every share root must exist.
func NewStore(cfgs []config.ShareConfig) (*Store, error) {
	shares := make(map[string]*Share, len(cfgs))
	for _, cfg := range cfgs {
		share, err := NewShare(cfg.Name, cfg.Path)
		if err != nil {
			return nil, err
		}
		shares[cfg.Name] = share
	}
	return &Store{shares: shares}, nil
}

// NewStoreWith builds a Store from pre-built shares. Used by tests.
func NewStoreWith(shares ...*Share) *Store {
	m := make(map[string]*Share, len(shares))
	for _, s := range shares {
		m[s.Name()] = s
	}
	return &Store{shares: m}
}

// Share looks up a share by name.
func (s *Store) Share(name string) (*Share, bool) {
	share, ok := s.shares[name]
	return share, ok
}

// Names returns the share names sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.shares))
	for name := range s.shares {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

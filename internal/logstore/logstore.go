// Package logstore keeps composed reports in a directory bounded by file
// count and total size.
//
// Files are written through a Pending handle into a hidden temporary file
// and renamed into place on Commit, so any visible name always denotes a
// finished file. Eviction runs after each commit and removes the oldest
// finished files first.
package logstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Defaults for the quota.
const (
	DefaultMaxFiles       = 100
	DefaultMaxBytes int64 = 256 << 20
)

const tempPrefix = ".pending-"

// ErrExists is returned by Commit when a finished file with the same name
// was committed first. The pending file is discarded.
var ErrExists = errors.New("log file already exists")

// Option configures a Store.
type Option func(*Store)

// WithMaxFiles bounds the number of finished files. Zero disables the limit.
func WithMaxFiles(n int) Option {
	return func(s *Store) { s.maxFiles = n }
}

// WithMaxBytes bounds the total size of finished files. Zero disables the limit.
func WithMaxBytes(n int64) Option {
	return func(s *Store) { s.maxBytes = n }
}

// Store is a bounded directory of finished files.
type Store struct {
	dir      string
	maxFiles int
	maxBytes int64

	// mu serializes commits and eviction.
	mu sync.Mutex
}

// Open creates dir if needed and removes temporary files left behind by an
// interrupted writer.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	s := &Store{dir: dir, maxFiles: DefaultMaxFiles, maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(s)
	}

	stale, err := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
	if err != nil {
		return nil, fmt.Errorf("scan log dir: %w", err)
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil {
			slog.Warn("failed to remove stale temp file", "path", p, "error", err)
		}
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Path returns where a finished file with name lives.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Lookup reports whether a finished file with name exists and returns its
// path.
func (s *Store) Lookup(name string) (string, bool) {
	if validateName(name) != nil {
		return "", false
	}
	p := s.Path(name)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}

// Create opens a pending file that becomes visible as name on Commit.
func (s *Store) Create(name string) (*Pending, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(s.dir, tempPrefix+name+"-*")
	if err != nil {
		return nil, fmt.Errorf("create pending file: %w", err)
	}
	return &Pending{store: s, file: f, name: name}, nil
}

// FileInfo describes one finished file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime int64 // unix nanoseconds
}

// List returns finished files, oldest first.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list log dir: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime != files[j].ModTime {
			return files[i].ModTime < files[j].ModTime
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// evict removes the oldest finished files until the quota holds. The file
// named keep is never removed.
func (s *Store) evict(keep string) {
	files, err := s.List()
	if err != nil {
		slog.Warn("log eviction skipped", "dir", s.dir, "error", err)
		return
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}
	count := len(files)

	for _, f := range files {
		overCount := s.maxFiles > 0 && count > s.maxFiles
		overBytes := s.maxBytes > 0 && total > s.maxBytes
		if !overCount && !overBytes {
			return
		}
		if f.Name == keep {
			continue
		}
		if err := os.Remove(s.Path(f.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to evict log file", "name", f.Name, "error", err)
			continue
		}
		slog.Debug("evicted log file", "name", f.Name, "size", f.Size)
		count--
		total -= f.Size
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid log file name %q", name)
	}
	return nil
}

// Pending is a file being written. Exactly one of Commit or Abort must be
// called.
type Pending struct {
	store *Store
	file  *os.File
	name  string
	done  bool
}

var _ io.Writer = (*Pending)(nil)

// Write appends to the pending file.
func (p *Pending) Write(b []byte) (int, error) {
	return p.file.Write(b)
}

// Commit syncs the pending file, renames it into place and enforces the
// quota. Returns the finished path. If another writer committed the same
// name first, the existing path is returned with ErrExists.
func (p *Pending) Commit() (string, error) {
	if p.done {
		return "", errors.New("pending file already finished")
	}
	p.done = true

	tmp := p.file.Name()
	if err := p.file.Sync(); err != nil {
		p.file.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("sync %s: %w", p.name, err)
	}
	if err := p.file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close %s: %w", p.name, err)
	}

	p.store.mu.Lock()
	defer p.store.mu.Unlock()

	final := p.store.Path(p.name)
	if info, err := os.Stat(final); err == nil && info.Mode().IsRegular() {
		os.Remove(tmp)
		return final, ErrExists
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("commit %s: %w", p.name, err)
	}
	p.store.evict(p.name)
	return final, nil
}

// Abort discards the pending file.
func (p *Pending) Abort() error {
	if p.done {
		return nil
	}
	p.done = true
	tmp := p.file.Name()
	p.file.Close()
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("abort %s: %w", p.name, err)
	}
	return nil
}

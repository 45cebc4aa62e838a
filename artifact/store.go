// Package artifact manages the screenshot directory: name resolution,
// listing, deletion, age-based sweeping, PDF export and an optional S3
// mirror.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/sitelens/horosafe"
	"github.com/hazyhaar/sitelens/metrics"
)

// ErrNotFound is returned for names that are invalid, escape the directory
// or do not exist. Callers cannot tell these cases apart.
var ErrNotFound = errors.New("File not found")

// Info describes one stored artifact.
type Info struct {
	Filename string    `json:"filename"`
	URL      string    `json:"url"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Mirror receives a copy of every stored artifact.
type Mirror interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	Delete(ctx context.Context, name string) error
}

// DownloadPath is the HTTP path serving name.
func DownloadPath(name string) string {
	return "/download/" + name
}

// Store is a view over the screenshot directory. The directory itself is the
// source of truth; Store keeps no index.
type Store struct {
	dir    string
	mirror Mirror
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMirror copies artifacts to m on Publish and removes them on Remove.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a Store rooted at dir. The directory is created lazily by
// the capturer; a missing directory reads as empty.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Resolve returns the on-disk path of name.
func (s *Store) Resolve(name string) (string, error) {
	p, err := horosafe.SafeJoin(s.dir, name)
	if err != nil {
		return "", ErrNotFound
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return p, nil
}

// Open opens name for reading. The caller closes the file.
func (s *Store) Open(name string) (*os.File, fs.FileInfo, error) {
	p, err := s.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("artifact: open %s: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("artifact: stat %s: %w", name, err)
	}
	return f, fi, nil
}

// ReadPNG returns the bytes of a stored PNG.
func (s *Store) ReadPNG(name string) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(name), ".png") {
		return nil, ErrNotFound
	}
	p, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", name, err)
	}
	return data, nil
}

// List returns stored PNG artifacts, newest first.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("artifact: list: %w", err)
	}

	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || horosafe.ValidateName(name) != nil ||
			!strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Filename: name,
			URL:      DownloadPath(name),
			Size:     fi.Size(),
			Modified: fi.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Modified.Equal(out[j].Modified) {
			return out[i].Filename > out[j].Filename
		}
		return out[i].Modified.After(out[j].Modified)
	})
	return out, nil
}

// Remove deletes name locally and from the mirror. Mirror failures are
// logged, not returned.
func (s *Store) Remove(ctx context.Context, name string) error {
	p, err := s.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("artifact: remove %s: %w", name, err)
	}
	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, name); err != nil {
			s.logger.Warn("artifact: mirror delete failed", "file", name, "error", err)
		}
	}
	return nil
}

// Publish copies a freshly stored artifact to the mirror. Without a mirror
// it is a no-op.
func (s *Store) Publish(ctx context.Context, name string) error {
	if s.mirror == nil {
		return nil
	}
	f, fi, err := s.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.mirror.Put(ctx, name, f, fi.Size()); err != nil {
		return fmt.Errorf("artifact: mirror %s: %w", name, err)
	}
	return nil
}

// Sweep removes artifacts last modified before now-olderThan and returns how
// many were removed.
func (s *Store) Sweep(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("artifact: sweep age must be positive")
	}
	list, err := s.List()
	if err != nil {
		return 0, err
	}
	removed, err := s.removeBefore(ctx, list, now.Add(-olderThan))
	if removed > 0 {
		metrics.ArtifactsSwept.Add(float64(removed))
		s.logger.Info("artifact: swept", "removed", removed, "older_than", olderThan.String())
	}
	return removed, err
}

// removeBefore removes the entries of list modified before cutoff. Files
// already gone are skipped without being counted.
func (s *Store) removeBefore(ctx context.Context, list []Info, cutoff time.Time) (int, error) {
	removed := 0
	for _, info := range list {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !info.Modified.Before(cutoff) {
			continue
		}
		err := s.Remove(ctx, info.Filename)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, ErrNotFound):
		default:
			return removed, err
		}
	}
	return removed, nil
}

// RunSweeper sweeps every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.Sweep(ctx, olderThan, now); err != nil && ctx.Err() == nil {
				s.logger.Error("artifact: sweep failed", "error", err)
			}
		}
	}
}

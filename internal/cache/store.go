package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/widgetshell/internal/infrastructure/logging"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

const (
	markerSuffix = ".loaded"
	partInfix    = ".part-"
)

// Store keeps cache entries as flat files in one directory. An entry is
// complete only when its marker file exists; the marker is created after the
// data file has been flushed and renamed into place.
type Store struct {
	dir    string
	maxAge time.Duration
	log    *logging.Logger
	now    func() time.Time
}

// Stats summarizes the store contents.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Partial int   `json:"partial"`
}

// NewStore creates dir if needed. maxAge > 0 makes entries older than maxAge
// count as absent.
func NewStore(dir string, maxAge time.Duration, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{
		dir:    dir,
		maxAge: maxAge,
		log:    logging.OrNop(log).Named("cache.store"),
		now:    time.Now,
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) dataPath(key string) string   { return filepath.Join(s.dir, key) }
func (s *Store) markerPath(key string) string { return filepath.Join(s.dir, key+markerSuffix) }

// Has reports whether key is complete and fresh.
func (s *Store) Has(key string) bool {
	info, err := os.Stat(s.markerPath(key))
	if err != nil {
		return false
	}
	return s.fresh(info)
}

func (s *Store) fresh(marker fs.FileInfo) bool {
	return s.maxAge <= 0 || s.now().Sub(marker.ModTime()) <= s.maxAge
}

// Open returns the bytes of a complete entry.
func (s *Store) Open(key string) (*os.File, error) {
	if !s.Has(key) {
		return nil, fs.ErrNotExist
	}
	return os.Open(s.dataPath(key))
}

// Write fills a temporary file via fill, then publishes it under key and
// creates the marker. On any error nothing is left behind for key except a
// previously completed entry. It returns the number of bytes written.
func (s *Store) Write(key string, fill func(w io.Writer) error) (int64, error) {
	if key == "" || strings.Contains(key, partInfix) || strings.HasSuffix(key, markerSuffix) {
		return 0, fmt.Errorf("invalid cache key %q", key)
	}

	tmp, err := os.CreateTemp(s.dir, key+partInfix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	cw := &countingWriter{w: tmp}
	if err := fill(cw); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmpPath, s.dataPath(key)); err != nil {
		return 0, fmt.Errorf("publish: %w", err)
	}
	committed = true

	if err := s.mark(key); err != nil {
		_ = os.Remove(s.dataPath(key))
		return 0, fmt.Errorf("mark: %w", err)
	}
	return cw.n, nil
}

func (s *Store) mark(key string) error {
	f, err := os.Create(s.markerPath(key))
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// A rewrite of an existing marker must refresh its age.
	now := s.now()
	return os.Chtimes(s.markerPath(key), now, now)
}

// Remove deletes key, marker first.
func (s *Store) Remove(key string) error {
	if err := os.Remove(s.markerPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Remove(s.dataPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Sweep removes temporary files and data files without a marker, which is
// what an interrupted write leaves behind. It returns how many files were
// removed. Call it before the worker starts.
func (s *Store) Sweep() (int, error) {
	var mu sync.Mutex
	removed := 0

	err := s.walk(func(name string, info fs.FileInfo) {
		var stale bool
		switch {
		case strings.Contains(name, partInfix):
			stale = true
		case strings.HasSuffix(name, markerSuffix):
			_, err := os.Stat(s.dataPath(strings.TrimSuffix(name, markerSuffix)))
			stale = errors.Is(err, fs.ErrNotExist)
		default:
			_, err := os.Stat(s.markerPath(name))
			stale = errors.Is(err, fs.ErrNotExist)
		}
		if !stale {
			return
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("sweep remove failed", zap.String("file", name), zap.Error(err))
			return
		}
		mu.Lock()
		removed++
		mu.Unlock()
	})
	if removed > 0 {
		s.log.Info("swept incomplete cache files", zap.Int("removed", removed))
	}
	return removed, err
}

// Stats counts complete entries and their size.
func (s *Store) Stats() (Stats, error) {
	var mu sync.Mutex
	var st Stats

	err := s.walk(func(name string, info fs.FileInfo) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case strings.Contains(name, partInfix):
			st.Partial++
		case strings.HasSuffix(name, markerSuffix):
			st.Entries++
		default:
			st.Bytes += info.Size()
		}
	})
	return st, err
}

// walk visits the regular files directly inside the store directory. fn may
// be called concurrently.
func (s *Store) walk(fn func(name string, info fs.FileInfo)) error {
	conf := fastwalk.Config{Follow: false}
	return fastwalk.Walk(&conf, s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if filepath.Clean(p) == filepath.Clean(s.dir) {
				return nil
			}
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fn(d.Name(), info)
		return nil
	})
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotationConfig bounds the size of bufferlab.log. Long debug-level race
// runs log one line per worker transition and grow quickly.
type RotationConfig struct {
	// MaxSizeMB rotates the file once a write would exceed it. Zero disables
	// rotation.
	MaxSizeMB int
	// MaxBackups is how many rotated files are kept beside the active one.
	MaxBackups int
	// Compress gzips each file as it is rotated out.
	Compress bool
}

// DefaultRotationConfig returns 10 MB files with three backups.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{MaxSizeMB: 10, MaxBackups: 3}
}

// RotatingWriter is an io.WriteCloser over a log file that renames the file
// to path.1 (shifting older backups to path.2 ... path.N) once it grows past
// the configured size. It is safe for concurrent use.
type RotatingWriter struct {
	path       string
	limit      int64
	maxBackups int
	compress   bool

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	w := &RotatingWriter{
		path:       path,
		limit:      int64(cfg.MaxSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
		compress:   cfg.Compress,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file past the limit.
// A single record larger than the limit is still written whole.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.limit > 0 && w.size > 0 && w.size+int64(len(p)) > w.limit {
		if err := w.rotate(); err != nil {
			// Keep logging into whatever file is open rather than drop records.
			fmt.Fprintf(os.Stderr, "bufferlab: log rotation failed: %v\n", err)
			if w.file == nil {
				return 0, err
			}
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate must be called with mu held.
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	w.file = nil

	w.shiftBackups()
	if w.maxBackups > 0 {
		first := w.backup(1)
		if err := os.Rename(w.path, first); err != nil {
			if openErr := w.open(); openErr != nil {
				return fmt.Errorf("failed to rename log file: %w (reopen: %v)", err, openErr)
			}
			return fmt.Errorf("failed to rename log file: %w", err)
		}
		if w.compress {
			if err := gzipFile(first); err != nil {
				fmt.Fprintf(os.Stderr, "bufferlab: log compression failed: %v\n", err)
			}
		}
	} else if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove log file: %w", err)
	}
	return w.open()
}

// shiftBackups moves path.i to path.i+1, dropping the oldest.
func (w *RotatingWriter) shiftBackups() {
	if w.maxBackups <= 0 {
		return
	}
	oldest := w.backup(w.maxBackups)
	_ = os.Remove(oldest)
	_ = os.Remove(oldest + ".gz")
	for i := w.maxBackups - 1; i >= 1; i-- {
		for _, ext := range []string{"", ".gz"} {
			src := w.backup(i) + ext
			if _, err := os.Stat(src); err == nil {
				_ = os.Rename(src, w.backup(i+1)+ext)
			}
		}
	}
}

func (w *RotatingWriter) backup(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

// gzipFile replaces path with path.gz.
func gzipFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	_, err = io.Copy(zw, src)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path + ".gz")
		return err
	}
	return os.Remove(path)
}

// Size returns the size of the active file in bytes.
func (w *RotatingWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Sync flushes the active file.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close syncs and closes the active file. Further writes fail.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Sync()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

package logging

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// newSmallWriter returns a writer that rotates after limit bytes.
func newSmallWriter(t *testing.T, limit int64, backups int, compress bool) (*RotatingWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), LogFileName)
	w, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: backups, Compress: compress})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	w.limit = limit
	t.Cleanup(func() { _ = w.Close() })
	return w, path
}

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", LogFileName)
		w, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = w.Close() }()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("log file was not created: %v", err)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), LogFileName)
		if err := os.WriteFile(path, []byte("first\n"), 0644); err != nil {
			t.Fatal(err)
		}
		w, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if w.Size() != 6 {
			t.Errorf("Size() = %d, want 6", w.Size())
		}
		_, _ = w.Write([]byte("second\n"))
		_ = w.Close()

		data, _ := os.ReadFile(path)
		if string(data) != "first\nsecond\n" {
			t.Errorf("content = %q", data)
		}
	})
}

func TestRotatingWriterRotation(t *testing.T) {
	tests := []struct {
		name        string
		backups     int
		writes      int
		wantBackups []string
		gone        []string
	}{
		{"single backup", 1, 2, []string{".1"}, []string{".2"}},
		{"shifts backups", 3, 3, []string{".1", ".2"}, []string{".3"}},
		{"drops oldest", 2, 5, []string{".1", ".2"}, []string{".3"}},
		{"no backups", 0, 3, nil, []string{".1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, path := newSmallWriter(t, 10, tt.backups, false)
			for i := 0; i < tt.writes; i++ {
				if _, err := w.Write([]byte(fmt.Sprintf("line-%d--\n", i))); err != nil {
					t.Fatalf("Write failed: %v", err)
				}
			}

			for _, suffix := range tt.wantBackups {
				if _, err := os.Stat(path + suffix); err != nil {
					t.Errorf("expected backup %s: %v", suffix, err)
				}
			}
			for _, suffix := range tt.gone {
				if _, err := os.Stat(path + suffix); !os.IsNotExist(err) {
					t.Errorf("backup %s should not exist", suffix)
				}
			}

			last := fmt.Sprintf("line-%d--\n", tt.writes-1)
			data, _ := os.ReadFile(path)
			if string(data) != last {
				t.Errorf("active file = %q, want %q", data, last)
			}
		})
	}
}

func TestRotatingWriterNewestBackupFirst(t *testing.T) {
	w, path := newSmallWriter(t, 10, 3, false)
	for _, line := range []string{"aaaaaaaaa\n", "bbbbbbbbb\n", "ccccccccc\n"} {
		_, _ = w.Write([]byte(line))
	}
	for suffix, want := range map[string]string{".1": "bbbbbbbbb\n", ".2": "aaaaaaaaa\n"} {
		data, err := os.ReadFile(path + suffix)
		if err != nil {
			t.Fatalf("read %s: %v", suffix, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", suffix, data, want)
		}
	}
}

func TestRotatingWriterCompression(t *testing.T) {
	w, path := newSmallWriter(t, 10, 2, true)
	_, _ = w.Write([]byte("compress-me\n"))
	_, _ = w.Write([]byte("active\n"))

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("uncompressed backup should have been removed")
	}
	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	data, _ := io.ReadAll(zr)
	if string(data) != "compress-me\n" {
		t.Errorf("decompressed = %q", data)
	}
}

func TestRotatingWriterDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	w, err := NewRotatingWriter(path, RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	for i := 0; i < 100; i++ {
		_, _ = w.Write([]byte("0123456789\n"))
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("rotation should be disabled with MaxSizeMB 0")
	}
	if w.Size() != 1100 {
		t.Errorf("Size() = %d, want 1100", w.Size())
	}
}

func TestRotatingWriterConcurrency(t *testing.T) {
	w, path := newSmallWriter(t, 512, 50, false)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = fmt.Fprintf(w, "{\"worker\":%d,\"i\":%d}\n", g, i)
			}
		}(g)
	}
	wg.Wait()
	_ = w.Close()

	// Every line in every file must be intact JSON.
	files, _ := filepath.Glob(path + "*")
	lines := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if line == "" {
				continue
			}
			var v map[string]int
			if err := json.Unmarshal([]byte(line), &v); err != nil {
				t.Fatalf("torn line %q in %s", line, f)
			}
			lines++
		}
	}
	if lines != 400 {
		t.Errorf("found %d lines, want 400", lines)
	}
}

func TestRotatingWriterClose(t *testing.T) {
	w, _ := newSmallWriter(t, 10, 1, false)
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
	if err := w.Sync(); err != nil {
		t.Errorf("Sync after Close = %v", err)
	}
}

func TestNewLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLoggerWithRotation(dir, LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLoggerWithRotation failed: %v", err)
	}
	logger.out.limit = 200

	for i := 0; i < 10; i++ {
		logger.WithPhase("unlocked").Info("phase completed", "final_value", i)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, LogFileName+".1")); err != nil {
		t.Errorf("expected a rotated log file: %v", err)
	}
}

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()
	if cfg.MaxSizeMB != 10 || cfg.MaxBackups != 3 || cfg.Compress {
		t.Errorf("DefaultRotationConfig() = %+v", cfg)
	}
}

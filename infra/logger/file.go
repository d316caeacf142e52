package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes an optional size rotated log file.
type FileConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

var (
	fileMu  sync.RWMutex
	fileOut io.Writer
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetFileOutput tees loggers created afterwards into a rotated file. An empty
// path turns the file output off. The returned closer releases the file.
func SetFileOutput(cfg FileConfig) (io.Closer, error) {
	fileMu.Lock()
	defer fileMu.Unlock()
	if cfg.Path == "" {
		fileOut = nil
		return nopCloser{}, nil
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	fileOut = lj
	return lj, nil
}

func withFile(w io.Writer) io.Writer {
	fileMu.RLock()
	defer fileMu.RUnlock()
	if fileOut == nil {
		return w
	}
	return io.MultiWriter(w, fileOut)
}

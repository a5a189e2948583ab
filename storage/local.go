// Package storage persists uploaded audio on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultExt = ".wav"

var ErrEmptyAudio = errors.New("audio data is empty")

// Local writes audio files below a base directory.
type Local struct {
	basePath string
}

// NewLocal creates basePath when it does not exist.
func NewLocal(basePath string) (*Local, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	return &Local{basePath: abs}, nil
}

func (l *Local) BasePath() string { return l.basePath }

// SaveAudio writes data under a unique name that keeps the extension of
// filename, and returns the absolute path.
func (l *Local) SaveAudio(data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyAudio
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = defaultExt
	}
	name := fmt.Sprintf("audio_%s_%s%s", time.Now().Format("20060102_150405"), uuid.NewString()[:8], ext)
	path := filepath.Join(l.basePath, name)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	return path, nil
}

// Exists reports whether path is a regular file.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

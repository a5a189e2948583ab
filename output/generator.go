// Package output renders up-sots as downloadable files.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/maastricht-university/upsot-pipeline/transcript"
)

const (
	FormatTXT = "txt"
	FormatPDF = "pdf"
	FormatEDL = "edl"
)

// ErrUnsupportedFormat is returned for a format no renderer handles.
var ErrUnsupportedFormat = errors.New("output: unsupported format")

// File describes one generated artifact.
type File struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

type document struct {
	title     string
	audioPath string
	generated time.Time
	upSots    []transcript.Segment
}

type renderFunc func(path string, doc document) error

var renderers = map[string]renderFunc{
	FormatTXT: renderTXT,
	FormatPDF: renderPDF,
	FormatEDL: renderEDL,
}

// Formats lists every supported format, sorted.
func Formats() []string {
	out := make([]string, 0, len(renderers))
	for f := range renderers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Request is one rendering job.
type Request struct {
	UpSots    []transcript.Segment
	AudioPath string
	Formats   []string
	// Dir receives the files; BaseFilename names them without extension.
	Dir          string
	BaseFilename string
}

// Generator renders up-sots to files.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator { return &Generator{now: time.Now} }

// Generate writes one file per requested format. Unknown formats fail the
// whole request before anything is written.
func (g *Generator) Generate(ctx context.Context, req Request) (map[string]File, error) {
	if len(req.Formats) == 0 {
		return nil, fmt.Errorf("output: no formats requested")
	}
	for _, f := range req.Formats {
		if _, ok := renderers[f]; !ok {
			return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, f)
		}
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create %s: %w", req.Dir, err)
	}

	doc := document{
		title:     req.BaseFilename,
		audioPath: req.AudioPath,
		generated: g.now(),
		upSots:    req.UpSots,
	}
	files := make(map[string]File, len(req.Formats))
	for _, f := range req.Formats {
		if err := ctx.Err(); err != nil {
			discard(files)
			return nil, err
		}
		name := req.BaseFilename + "." + f
		path := filepath.Join(req.Dir, name)
		if err := renderers[f](path, doc); err != nil {
			discard(files)
			_ = os.Remove(path)
			return nil, fmt.Errorf("output: render %s: %w", f, err)
		}
		files[f] = File{Path: path, Filename: name}
	}
	return files, nil
}

// discard removes the files of a run that did not complete.
func discard(files map[string]File) {
	for _, f := range files {
		_ = os.Remove(f.Path)
	}
}

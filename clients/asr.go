package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/maastricht-university/upsot-pipeline/transcript"
)

type TransSeg struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}
type ASRResp struct {
	Segments []TransSeg `json:"segments"`
	Language string     `json:"language"`
}

func (h *HTTP) ASR(ctx context.Context, url, wavPath string) (*ASRResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(wavPath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(url, "/")+"/transcribe", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("asr %s: %s", resp.Status, string(body))
	}

	var out ASRResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("asr decode: %w", err)
	}
	return &out, nil
}

// Transcriber adapts the ASR service to the session coordinator.
type Transcriber struct {
	http *HTTP
	url  string
}

func NewTranscriber(h *HTTP, url string) *Transcriber {
	return &Transcriber{http: h, url: url}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (*transcript.Transcript, error) {
	resp, err := t.http.ASR(ctx, t.url, audioPath)
	if err != nil {
		return nil, err
	}
	return ToTranscript(resp)
}

// ToTranscript turns raw recognizer output into a Transcript. Blank and
// zero-length segments are dropped and overlapping starts are pushed to
// the previous segment's end.
func ToTranscript(resp *ASRResp) (*transcript.Transcript, error) {
	segs := make([]transcript.Segment, 0, len(resp.Segments))
	prevEnd := 0.0
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		start := s.Start
		if len(segs) > 0 && start < prevEnd {
			start = prevEnd
		}
		if text == "" || !(start < s.End) {
			continue
		}
		segs = append(segs, transcript.Segment{Start: start, End: s.End, Text: text})
		prevEnd = s.End
	}
	return transcript.New(segs, resp.Language)
}

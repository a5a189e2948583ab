package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/maastricht-university/upsot-pipeline/config"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestTranscriber_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			f.Close()
			if hdr.Filename != "take.wav" {
				t.Errorf("unexpected filename %q", hdr.Filename)
			}
		}
		_ = json.NewEncoder(w).Encode(ASRResp{
			Language: "en",
			Segments: []TransSeg{{Start: 0, End: 2, Text: " hello "}, {Start: 2, End: 4, Text: "world"}},
		})
	}))
	defer srv.Close()

	tr := NewTranscriber(NewHTTP(5*time.Second), srv.URL+"/")
	got, err := tr.Transcribe(context.Background(), writeTemp(t, "take.wav", "RIFF"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Len() != 2 || got.FullText() != "hello world" || got.Language() != "en" {
		t.Errorf("unexpected transcript: len=%d text=%q lang=%q", got.Len(), got.FullText(), got.Language())
	}
}

func TestTranscriber_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewTranscriber(NewHTTP(0), srv.URL).Transcribe(context.Background(), writeTemp(t, "a.wav", "x"))
	if err == nil {
		t.Fatal("expected an error from a 503 response")
	}
}

func TestToTranscript_CleansRecognizerOutput(t *testing.T) {
	got, err := ToTranscript(&ASRResp{Segments: []TransSeg{
		{Start: 0, End: 3, Text: "one"},
		{Start: 2.5, End: 5, Text: "two"},
		{Start: 5, End: 5, Text: "zero length"},
		{Start: 5, End: 6, Text: "   "},
		{Start: 6, End: 8, Text: "three"},
	}})
	if err != nil {
		t.Fatalf("ToTranscript: %v", err)
	}
	segs := got.Segments()
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if segs[1].Start != 3 {
		t.Errorf("expected overlapping start pushed to 3, got %v", segs[1].Start)
	}
	if segs[2].Text != "three" {
		t.Errorf("expected last segment \"three\", got %q", segs[2].Text)
	}
}

func newTestMailer() *Mailer {
	log, _ := test.NewNullLogger()
	m := NewMailer(config.SMTP{From: "tool@example.com", Port: 587}, true, log)
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return m
}

func TestMailer_Simulated(t *testing.T) {
	edl := writeTemp(t, "a.edl", "TITLE: a")
	txt := writeTemp(t, "a.txt", "text")

	d, err := newTestMailer().Send(context.Background(), EmailRequest{
		To: "editor@example.com", Subject: "EDL", Body: "attached", Attachment: edl, Extra: []string{txt},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !d.Simulated || d.Recipient != "editor@example.com" {
		t.Errorf("unexpected delivery %+v", d)
	}
	if len(d.Attachments) != 2 || d.Attachments[0] != "a.edl" {
		t.Errorf("unexpected attachments %v", d.Attachments)
	}
}

func TestMailer_InvalidRecipient(t *testing.T) {
	edl := writeTemp(t, "a.edl", "x")
	if _, err := newTestMailer().Send(context.Background(), EmailRequest{To: "not an address", Attachment: edl}); err == nil {
		t.Fatal("expected an error for an invalid recipient")
	}
}

func TestMailer_MissingAttachment(t *testing.T) {
	_, err := newTestMailer().Send(context.Background(), EmailRequest{
		To: "editor@example.com", Attachment: filepath.Join(t.TempDir(), "missing.edl"),
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

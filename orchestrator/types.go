package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maastricht-university/upsot-pipeline/clients"
	"github.com/maastricht-university/upsot-pipeline/output"
	"github.com/maastricht-university/upsot-pipeline/params"
	"github.com/maastricht-university/upsot-pipeline/scoring"
	"github.com/maastricht-university/upsot-pipeline/transcript"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrAudioNotFound     = errors.New("audio file not found")
	ErrTranscription     = errors.New("transcription failed")
	ErrNoUpSots          = errors.New("no up-sots available")
	ErrNoOutputs         = errors.New("no outputs available")
	ErrFormatUnavailable = errors.New("output format not available")
	ErrRender            = errors.New("output generation failed")
	ErrEmail             = errors.New("email delivery failed")
)

type Status string

const (
	StatusUploaded    Status = "uploaded"
	StatusRecorded    Status = "recorded"
	StatusTranscribed Status = "transcribed"
	StatusScored      Status = "scored"
	StatusSelected    Status = "selected"
)

// Transcriber turns an audio file into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*transcript.Transcript, error)
}

// Renderer writes up-sots to files.
type Renderer interface {
	Generate(ctx context.Context, req output.Request) (map[string]output.File, error)
}

type Mailer interface {
	Send(ctx context.Context, req clients.EmailRequest) (clients.Delivery, error)
}

type AudioStore interface {
	SaveAudio(data []byte, filename string) (string, error)
}

// Session is one recording and everything derived from it. Fields are
// guarded by mu; the Pipeline holds it for the whole of each operation.
type Session struct {
	mu sync.Mutex

	id        string
	audioPath string
	created   time.Time
	status    Status

	params     *params.Controller
	matcher    *scoring.Matcher
	transcript *transcript.Transcript

	upSots  []transcript.Segment
	relaxed bool

	outputs map[string]output.File
	email   *clients.Delivery
}

func (s *Session) ID() string { return s.id }

// Selection is the state after a parameter, script or transcript change.
type Selection struct {
	Status     Status               `json:"status"`
	Parameters params.Parameters    `json:"parameters"`
	UpSots     []transcript.Segment `json:"up_sots"`
	// Relaxed is set when nothing met the sensitivity and the best
	// segment was returned instead.
	Relaxed bool `json:"relaxed"`
}

type TranscribeResult struct {
	Selection
	SegmentsCount  int    `json:"segments_count"`
	FullTranscript string `json:"full_transcript"`
}

type EmailInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Recipient string    `json:"recipient"`
	Simulated bool      `json:"simulated"`
}

// Info is a session snapshot without file paths.
type Info struct {
	SessionID        string               `json:"session_id"`
	Timestamp        time.Time            `json:"timestamp"`
	Status           Status               `json:"status"`
	Parameters       params.Parameters    `json:"parameters"`
	HasScript        bool                 `json:"has_script"`
	SegmentsCount    int                  `json:"segments_count,omitempty"`
	FullTranscript   string               `json:"full_transcript,omitempty"`
	UpSotsCount      int                  `json:"up_sots_count"`
	UpSots           []transcript.Segment `json:"up_sots,omitempty"`
	AvailableFormats []string             `json:"available_formats,omitempty"`
	EmailSent        *EmailInfo           `json:"email_sent,omitempty"`
}

// EmailOptions selects what SendEmail attaches and says.
type EmailOptions struct {
	To         string
	Subject    string
	Body       string
	IncludeTXT bool
	IncludePDF bool
}

const (
	DefaultEmailSubject = "EDL File from Retro Transcription Tool"
	DefaultEmailBody    = "Please find attached the EDL file generated from your recording."
)

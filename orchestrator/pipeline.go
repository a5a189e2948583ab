package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/upsot-pipeline/clients"
	"github.com/maastricht-university/upsot-pipeline/output"
	"github.com/maastricht-university/upsot-pipeline/params"
	"github.com/maastricht-university/upsot-pipeline/scoring"
	"github.com/maastricht-university/upsot-pipeline/storage"
)

// Options wires a Pipeline.
type Options struct {
	Store       Store
	Audio       AudioStore
	Transcriber Transcriber
	Renderer    Renderer
	Mailer      Mailer
	Log         logrus.FieldLogger

	Defaults        params.Parameters
	MaxScriptLength int
	OutputsDir      string
}

// Pipeline coordinates sessions: intake, transcription, scoring,
// selection, rendering and delivery.
type Pipeline struct {
	store       Store
	audio       AudioStore
	transcriber Transcriber
	renderer    Renderer
	mailer      Mailer
	log         logrus.FieldLogger

	defaults   params.Parameters
	maxScript  int
	outputsDir string
	now        func() time.Time
}

func NewPipeline(o Options) *Pipeline {
	if o.Store == nil {
		o.Store = NewMemoryStore()
	}
	if o.Log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		o.Log = l
	}
	if o.OutputsDir == "" {
		o.OutputsDir = "outputs"
	}
	return &Pipeline{
		store:       o.Store,
		audio:       o.Audio,
		transcriber: o.Transcriber,
		renderer:    o.Renderer,
		mailer:      o.Mailer,
		log:         o.Log,
		defaults:    o.Defaults,
		maxScript:   o.MaxScriptLength,
		outputsDir:  o.OutputsDir,
		now:         time.Now,
	}
}

// Upload saves audio bytes and opens a session for them. recorded marks
// audio captured in the browser rather than uploaded as a file.
func (p *Pipeline) Upload(data []byte, filename string, recorded bool) (string, error) {
	path, err := p.audio.SaveAudio(data, filename)
	if err != nil {
		return "", err
	}
	status := StatusUploaded
	if recorded {
		status = StatusRecorded
	}
	return p.open(path, status), nil
}

// Open starts a session for an audio file already on disk.
func (p *Pipeline) Open(audioPath string) (string, error) {
	if !storage.Exists(audioPath) {
		return "", fmt.Errorf("%w: %s", ErrAudioNotFound, audioPath)
	}
	return p.open(audioPath, StatusUploaded), nil
}

func (p *Pipeline) open(audioPath string, status Status) string {
	s := &Session{
		id:        uuid.NewString(),
		audioPath: audioPath,
		created:   p.now(),
		status:    status,
		params:    params.NewController(p.defaults),
		matcher:   scoring.NewMatcher(p.maxScript),
	}
	p.store.Put(s)
	p.log.WithFields(logrus.Fields{"session_id": s.id, "status": status}).Info("session created")
	return s.id
}

// lock looks up a session and locks it; callers must unlock.
func (p *Pipeline) lock(id string) (*Session, error) {
	s, ok := p.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.mu.Lock()
	return s, nil
}

// Transcribe runs the transcriber, then applies partial (which may be nil)
// and selects up-sots. A failed transcription leaves the session as it
// was. A non-nil error matching params.ErrInvalidParameter comes with a
// valid result: the transcript was stored and only the named fields were
// rejected.
func (p *Pipeline) Transcribe(ctx context.Context, id string, partial *params.Partial) (TranscribeResult, error) {
	s, err := p.lock(id)
	if err != nil {
		return TranscribeResult{}, err
	}
	defer s.mu.Unlock()

	if !storage.Exists(s.audioPath) {
		return TranscribeResult{}, fmt.Errorf("%w: %s", ErrAudioNotFound, filepath.Base(s.audioPath))
	}
	log := p.log.WithField("session_id", id)

	tr, err := p.transcriber.Transcribe(ctx, s.audioPath)
	if err != nil {
		log.WithError(err).Warn("transcription failed")
		return TranscribeResult{}, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	s.transcript = tr
	s.status = StatusTranscribed
	log.WithField("segments", tr.Len()).Info("transcribed")

	var paramErr error
	if partial != nil {
		_, paramErr = s.params.Set(*partial)
	}
	sel := p.recompute(s)
	return TranscribeResult{
		Selection:      sel,
		SegmentsCount:  tr.Len(),
		FullTranscript: tr.FullText(),
	}, paramErr
}

// SetParameters merges partial onto the session's parameters and, once a
// transcript exists, reselects. Rejected fields are reported in the error
// while the returned Selection reflects every field that was applied. An
// empty partial changes nothing and fails with params.ErrNoParameters.
func (p *Pipeline) SetParameters(id string, partial params.Partial) (Selection, error) {
	s, err := p.lock(id)
	if err != nil {
		return Selection{}, err
	}
	defer s.mu.Unlock()

	if partial.Empty() {
		return current(s), params.ErrNoParameters
	}

	_, paramErr := s.params.Set(partial)
	if paramErr != nil {
		p.log.WithField("session_id", id).WithError(paramErr).Info("parameter update partly rejected")
	}
	if s.transcript == nil {
		return Selection{Status: s.status, Parameters: s.params.Get()}, paramErr
	}
	return p.recompute(s), paramErr
}

// SetScript replaces the session's reference script and, once a
// transcript exists, rescores and reselects. An invalid script leaves the
// session unchanged.
func (p *Pipeline) SetScript(id, text string) (scoring.ScriptInfo, Selection, error) {
	s, err := p.lock(id)
	if err != nil {
		return scoring.ScriptInfo{}, Selection{}, err
	}
	defer s.mu.Unlock()

	info, err := s.matcher.SetReferenceScript(text)
	if err != nil {
		return scoring.ScriptInfo{}, Selection{}, err
	}
	p.log.WithFields(logrus.Fields{"session_id": id, "words": info.Words}).Info("reference script set")
	if s.transcript == nil {
		return info, Selection{Status: s.status, Parameters: s.params.Get()}, nil
	}
	return info, p.recompute(s), nil
}

// GenerateOutputs renders the current up-sots. formats defaults to every
// supported format.
func (p *Pipeline) GenerateOutputs(ctx context.Context, id string, formats []string) (map[string]output.File, error) {
	s, err := p.lock(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if len(s.upSots) == 0 {
		return nil, ErrNoUpSots
	}
	if len(formats) == 0 {
		formats = output.Formats()
	}

	dir, err := sessionDir(p.outputsDir, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	files, err := p.renderer.Generate(ctx, output.Request{
		UpSots:       copySegments(s.upSots),
		AudioPath:    s.audioPath,
		Formats:      formats,
		Dir:          dir,
		BaseFilename: outputBase(p.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	s.outputs = files

	if path, err := persist(dir, p.bundle(s)); err != nil {
		p.log.WithField("session_id", id).WithError(err).Warn("writing manifest failed")
	} else {
		p.log.WithFields(logrus.Fields{"session_id": id, "formats": sortedKeys(files), "manifest": path}).Info("outputs generated")
	}
	return copyFiles(files), nil
}

// Output returns a generated file of the session.
func (p *Pipeline) Output(id, format string) (output.File, error) {
	s, err := p.lock(id)
	if err != nil {
		return output.File{}, err
	}
	defer s.mu.Unlock()

	if len(s.outputs) == 0 {
		return output.File{}, ErrNoOutputs
	}
	f, ok := s.outputs[format]
	if !ok {
		return output.File{}, fmt.Errorf("%w: %s", ErrFormatUnavailable, format)
	}
	if !storage.Exists(f.Path) {
		return output.File{}, fmt.Errorf("%w: %s file is missing", ErrFormatUnavailable, format)
	}
	return f, nil
}

// SendEmail mails the EDL, plus txt/pdf when asked for and generated.
func (p *Pipeline) SendEmail(ctx context.Context, id string, o EmailOptions) (clients.Delivery, error) {
	s, err := p.lock(id)
	if err != nil {
		return clients.Delivery{}, err
	}
	defer s.mu.Unlock()

	if len(s.outputs) == 0 {
		return clients.Delivery{}, ErrNoOutputs
	}
	edl, ok := s.outputs[output.FormatEDL]
	if !ok {
		return clients.Delivery{}, fmt.Errorf("%w: %s", ErrFormatUnavailable, output.FormatEDL)
	}
	req := clients.EmailRequest{
		To:         o.To,
		Subject:    o.Subject,
		Body:       o.Body,
		Attachment: edl.Path,
	}
	if req.Subject == "" {
		req.Subject = DefaultEmailSubject
	}
	if req.Body == "" {
		req.Body = DefaultEmailBody
	}
	if f, ok := s.outputs[output.FormatTXT]; ok && o.IncludeTXT {
		req.Extra = append(req.Extra, f.Path)
	}
	if f, ok := s.outputs[output.FormatPDF]; ok && o.IncludePDF {
		req.Extra = append(req.Extra, f.Path)
	}

	d, err := p.mailer.Send(ctx, req)
	if err != nil {
		return clients.Delivery{}, fmt.Errorf("%w: %w", ErrEmail, err)
	}
	s.email = &d
	return d, nil
}

// Info returns a snapshot of the session.
func (p *Pipeline) Info(id string) (Info, error) {
	s, err := p.lock(id)
	if err != nil {
		return Info{}, err
	}
	defer s.mu.Unlock()

	info := Info{
		SessionID:   s.id,
		Timestamp:   s.created,
		Status:      s.status,
		Parameters:  s.params.Get(),
		HasScript:   s.matcher.Script() != nil,
		UpSotsCount: len(s.upSots),
		UpSots:      copySegments(s.upSots),
	}
	if s.transcript != nil {
		info.SegmentsCount = s.transcript.Len()
		info.FullTranscript = s.transcript.FullText()
	}
	if len(s.outputs) > 0 {
		info.AvailableFormats = sortedKeys(s.outputs)
	}
	if s.email != nil {
		info.EmailSent = &EmailInfo{Timestamp: s.email.Timestamp, Recipient: s.email.Recipient, Simulated: s.email.Simulated}
	}
	return info, nil
}

// RunOptions configures a one-shot Run.
type RunOptions struct {
	Parameters *params.Partial
	Script     string
	Formats    []string
}

// RunResult is what a one-shot Run produced.
type RunResult struct {
	SessionID string
	Selection Selection
	Files     map[string]output.File
}

// Run processes one audio file end to end: transcribe, apply the script
// and parameters, select and render.
func (p *Pipeline) Run(ctx context.Context, audioPath string, o RunOptions) (RunResult, error) {
	id, err := p.Open(audioPath)
	if err != nil {
		return RunResult{}, err
	}
	res, err := p.Transcribe(ctx, id, o.Parameters)
	if err != nil && !errors.Is(err, params.ErrInvalidParameter) {
		return RunResult{}, err
	}
	if err != nil {
		p.log.WithError(err).Warn("some parameters were rejected, defaults kept for those fields")
	}
	sel := res.Selection
	if o.Script != "" {
		if _, sel, err = p.SetScript(id, o.Script); err != nil {
			return RunResult{}, err
		}
	}
	files, err := p.GenerateOutputs(ctx, id, o.Formats)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{SessionID: id, Selection: sel, Files: files}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/maastricht-university/upsot-pipeline/output"
	"github.com/maastricht-university/upsot-pipeline/params"
	"github.com/maastricht-university/upsot-pipeline/transcript"
)

const manifestName = "manifest.json"

// PersistBundle is the session manifest written next to generated outputs.
type PersistBundle struct {
	SessionID   string                 `json:"session_id"`
	AudioPath   string                 `json:"audio_path"`
	GeneratedAt time.Time              `json:"generated_at"`
	Parameters  params.Parameters      `json:"parameters"`
	Script      string                 `json:"script,omitempty"`
	Relaxed     bool                   `json:"relaxed"`
	UpSots      []transcript.Segment   `json:"up_sots"`
	Outputs     map[string]output.File `json:"outputs"`
}

func sessionDir(outputsRoot, id string) (string, error) {
	dir := filepath.Join(outputsRoot, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Pipeline) bundle(s *Session) PersistBundle {
	b := PersistBundle{
		SessionID:   s.id,
		AudioPath:   s.audioPath,
		GeneratedAt: p.now(),
		Parameters:  s.params.Get(),
		Relaxed:     s.relaxed,
		UpSots:      s.upSots,
		Outputs:     s.outputs,
	}
	if sc := s.matcher.Script(); sc != nil {
		b.Script = sc.Text()
	}
	return b
}

func persist(dir string, b PersistBundle) (string, error) {
	path := filepath.Join(dir, manifestName)
	if err := writeJSON(path, b); err != nil {
		return "", err
	}
	return path, nil
}

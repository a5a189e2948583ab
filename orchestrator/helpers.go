package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/upsot-pipeline/output"
	"github.com/maastricht-university/upsot-pipeline/scoring"
	"github.com/maastricht-university/upsot-pipeline/selection"
	"github.com/maastricht-university/upsot-pipeline/transcript"
)

// recompute rescores the stored transcript and reselects from scratch with
// the session's current parameters and script. Generated outputs no longer
// match the new up-sots and are dropped. s.mu must be held.
func (p *Pipeline) recompute(s *Session) Selection {
	prm := s.params.Get()

	scored := scoring.Score(s.transcript.Segments(), s.matcher.Script())
	s.status = StatusScored

	res := selection.Run(scored, selection.Options{
		Count:           prm.UpSotsCount,
		Sensitivity:     prm.Sensitivity,
		SortByRelevance: prm.SortByRelevance,
	})
	s.upSots = res.UpSots
	s.relaxed = res.Relaxed
	s.outputs = nil
	s.status = StatusSelected

	p.log.WithFields(logrus.Fields{
		"session_id": s.id,
		"up_sots":    len(res.UpSots),
		"relaxed":    res.Relaxed,
		"by_score":   prm.SortByRelevance,
	}).Debug("up-sots selected")

	return Selection{
		Status:     s.status,
		Parameters: prm,
		UpSots:     copySegments(res.UpSots),
		Relaxed:    res.Relaxed,
	}
}

// current reports the session's selection without recomputing it. s.mu
// must be held.
func current(s *Session) Selection {
	return Selection{
		Status:     s.status,
		Parameters: s.params.Get(),
		UpSots:     copySegments(s.upSots),
		Relaxed:    s.relaxed,
	}
}

// outputBase names one rendering run. The suffix keeps runs within the
// same second from overwriting files an earlier run still points to.
func outputBase(t time.Time) string {
	return "transcript_" + t.Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

func copySegments(segs []transcript.Segment) []transcript.Segment {
	if segs == nil {
		return nil
	}
	cp := make([]transcript.Segment, len(segs))
	copy(cp, segs)
	return cp
}

func copyFiles(files map[string]output.File) map[string]output.File {
	cp := make(map[string]output.File, len(files))
	for k, v := range files {
		cp[k] = v
	}
	return cp
}

// Package selection picks the up-sots of a transcript.
package selection

import (
	"sort"

	"github.com/maastricht-university/upsot-pipeline/transcript"
)

// Options configures one selection run.
type Options struct {
	Count           int
	Sensitivity     float64
	SortByRelevance bool
}

// Result is the outcome of Run. Relaxed is set when no segment met the
// sensitivity threshold and the best-scoring segment was taken instead.
type Result struct {
	UpSots  []transcript.Segment
	Relaxed bool
}

// Select returns at most count segments in chronological order.
func Select(segs []transcript.Segment, count int, sensitivity float64, sortByRelevance bool) []transcript.Segment {
	return Run(segs, Options{Count: count, Sensitivity: sensitivity, SortByRelevance: sortByRelevance}).UpSots
}

// Run filters, ranks and truncates segs. In relevance mode segments scoring
// below the sensitivity are dropped (unscored segments are kept) and the
// rest are ranked by score, earlier start first on ties. In chronological
// mode the first Count segments are taken and scores play no part. Either
// way the chosen segments come back in recording order.
func Run(segs []transcript.Segment, opt Options) Result {
	if len(segs) == 0 || opt.Count <= 0 {
		return Result{UpSots: []transcript.Segment{}}
	}

	pool := make([]transcript.Segment, len(segs))
	copy(pool, segs)
	chronological(pool)

	var res Result
	if opt.SortByRelevance {
		eligible := make([]transcript.Segment, 0, len(pool))
		for _, s := range pool {
			if v, ok := s.Scored(); ok && v < opt.Sensitivity {
				continue
			}
			eligible = append(eligible, s)
		}
		if len(eligible) == 0 {
			eligible = []transcript.Segment{best(pool)}
			res.Relaxed = true
		}
		sort.SliceStable(eligible, func(i, j int) bool { return ranksBefore(eligible[i], eligible[j]) })
		pool = eligible
	}

	if len(pool) > opt.Count {
		pool = pool[:opt.Count]
	}
	chronological(pool)
	res.UpSots = pool
	return res
}

// best returns the top-ranked segment of a non-empty slice.
func best(segs []transcript.Segment) transcript.Segment {
	top := segs[0]
	for _, s := range segs[1:] {
		if ranksBefore(s, top) {
			top = s
		}
	}
	return top
}

func ranksBefore(a, b transcript.Segment) bool {
	sa, sb := rankScore(a), rankScore(b)
	if sa != sb {
		return sa > sb
	}
	return a.Start < b.Start
}

// rankScore places unscored segments after every scored one.
func rankScore(s transcript.Segment) float64 {
	if v, ok := s.Scored(); ok {
		return v
	}
	return -1
}

func chronological(segs []transcript.Segment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
}

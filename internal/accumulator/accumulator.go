// Package accumulator folds orchestrator events into the totals reported
// for a finished translation.
package accumulator

import (
	"slices"

	"github.com/GrxyScxr1/vertana-sub000/internal/orchestrator"
)

// Count is one key of an insertion-ordered tally.
type Count struct {
	Key   string
	Value int
}

// State is the running aggregate. The zero value is the empty state.
// Accumulate never modifies a State it is given.
type State struct {
	Completion        *orchestrator.CompleteEvent
	TotalQualityScore float64
	QualityScoreCount int
	// ModelWins counts selections per model, in the order given to Seed and
	// then in first-seen order.
	ModelWins []Count
}

// Seed returns the empty state with a zero tally for each model, in
// invocation order.
func Seed(models ...string) State {
	var s State
	for _, m := range models {
		if !slices.ContainsFunc(s.ModelWins, func(c Count) bool { return c.Key == m }) {
			s.ModelWins = append(s.ModelWins, Count{Key: m})
		}
	}
	return s
}

// Accumulate returns the state after ev.
func Accumulate(s State, ev orchestrator.Event) State {
	switch ev := ev.(type) {
	case *orchestrator.ChunkEvent:
		next := s
		if ev.QualityScore != nil {
			next.TotalQualityScore += *ev.QualityScore
			next.QualityScoreCount++
		}
		if ev.SelectedModel != "" {
			next.ModelWins = increment(s.ModelWins, ev.SelectedModel)
		}
		return next
	case *orchestrator.CompleteEvent:
		next := s
		next.Completion = ev
		return next
	default:
		return s
	}
}

func increment(counts []Count, key string) []Count {
	out := make([]Count, len(counts), len(counts)+1)
	copy(out, counts)
	for i := range out {
		if out[i].Key == key {
			out[i].Value++
			return out
		}
	}
	return append(out, Count{Key: key, Value: 1})
}

// AverageQualityScore returns the mean chunk score, or false when no chunk
// carried one.
func (s State) AverageQualityScore() (float64, bool) {
	if s.QualityScoreCount == 0 {
		return 0, false
	}
	return s.TotalQualityScore / float64(s.QualityScoreCount), true
}

// MaxByValue returns the key with the strictly greatest value. Ties go to
// the key that came first. It returns false when no key has a positive
// value.
func MaxByValue(counts []Count) (string, bool) {
	var best Count
	for _, c := range counts {
		if c.Value > best.Value {
			best = c
		}
	}
	return best.Key, best.Value > 0
}

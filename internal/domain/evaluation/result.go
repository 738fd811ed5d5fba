// Package evaluation defines evaluation results and the winner-selection
// rules. Selection is a pure function of scores, enabling deterministic
// re-evaluation.
package evaluation

import (
	"sort"
	"time"
)

// Result is the immutable outcome of running one candidate against one
// scenario. Score is in [0,1]; the per-dimension breakdown separates
// tool-usage correctness from outcome quality.
type Result struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CandidateID  string    `json:"candidate_id"`
	ScenarioID   string    `json:"scenario_id"`
	Score        float64   `json:"score"`
	ToolScore    float64   `json:"tool_score"`
	OutcomeScore float64   `json:"outcome_score"`
	TraceID      string    `json:"trace_id"`
	ToolCalls    int       `json:"tool_calls"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary aggregates one candidate's results across all scenarios.
type Summary struct {
	CandidateID string  `json:"candidate_id"`
	MeanScore   float64 `json:"mean_score"`
	ToolCalls   int     `json:"tool_calls"`
	Scenarios   int     `json:"scenarios"`
}

// Summarize groups results by candidate, computing each candidate's mean
// score and total tool-call count. Output order follows candidate ID so the
// summary itself is deterministic.
func Summarize(results []Result) []Summary {
	byCandidate := make(map[string]*Summary)
	for i := range results {
		r := &results[i]
		s := byCandidate[r.CandidateID]
		if s == nil {
			s = &Summary{CandidateID: r.CandidateID}
			byCandidate[r.CandidateID] = s
		}
		s.MeanScore += r.Score
		s.ToolCalls += r.ToolCalls
		s.Scenarios++
	}

	summaries := make([]Summary, 0, len(byCandidate))
	for _, s := range byCandidate {
		if s.Scenarios > 0 {
			s.MeanScore /= float64(s.Scenarios)
		}
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CandidateID < summaries[j].CandidateID
	})
	return summaries
}

// SelectWinner returns the summary with the highest mean score. Ties break
// toward the lowest total tool-call count (prefer efficiency), then toward
// the lexically smallest candidate ID so selection never depends on map
// iteration order. Returns false when there are no summaries.
func SelectWinner(summaries []Summary) (Summary, bool) {
	if len(summaries) == 0 {
		return Summary{}, false
	}
	best := summaries[0]
	for _, s := range summaries[1:] {
		if s.MeanScore > best.MeanScore {
			best = s
			continue
		}
		if s.MeanScore == best.MeanScore {
			if s.ToolCalls < best.ToolCalls ||
				(s.ToolCalls == best.ToolCalls && s.CandidateID < best.CandidateID) {
				best = s
			}
		}
	}
	return best, true
}

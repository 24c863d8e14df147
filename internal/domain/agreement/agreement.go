// Package agreement scores how well two independent extraction runs of the
// same document agree, record by record.
package agreement

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/okian/revsched/internal/domain/schedule"
)

// Result annotates one first-run record.
type Result struct {
	Index         int     `json:"index"`
	MatchedIndex  int     `json:"matched_index"`
	Similarity    float64 `json:"similarity"`
	Completeness  float64 `json:"completeness"`
	Confidence    float64 `json:"confidence"`
	FlagForReview bool    `json:"flag_for_review"`
}

// Summary aggregates the results of one comparison.
type Summary struct {
	MeanConfidence float64 `json:"mean_confidence"`
	MinConfidence  float64 `json:"min_confidence"`
	Run1Count      int     `json:"run1_count"`
	Run2Count      int     `json:"run2_count"`
	Matched        int     `json:"matched"`
	Unmatched      int     `json:"unmatched"`
	Flagged        int     `json:"flagged"`
	Extra          int     `json:"extra"`
}

// Field weights of the record similarity.
const (
	weightName      = 0.35
	weightTotal     = 0.25
	weightStart     = 0.10
	weightUnit      = 0.10
	weightEvery     = 0.05
	weightLabel     = 0.05
	weightEvent     = 0.05
	weightTiers     = 0.05
	dateScaleDays   = 30.0
	maxIncompletion = 0.5
)

// Scorer pairs and scores records from two runs.
type Scorer struct {
	minConfidence float64
	minSimilarity float64
}

// New returns a Scorer flagging confidence below 0.75 or similarity below
// 0.70 unless configured otherwise.
func New(opts ...Option) *Scorer {
	s := &Scorer{minConfidence: 0.75, minSimilarity: 0.70}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score matches every run-1 record, in order, to the most similar run-2
// record not yet taken. The first candidate with the highest similarity
// wins; there is no backtracking.
func (s *Scorer) Score(run1, run2 []schedule.Record) ([]Result, Summary) {
	used := make([]bool, len(run2))
	results := make([]Result, 0, len(run1))
	sum := Summary{Run1Count: len(run1), Run2Count: len(run2)}

	for i := range run1 {
		match, sim := -1, 0.0
		for j := range run2 {
			if used[j] {
				continue
			}
			if v := Similarity(run1[i], run2[j]); v > sim {
				match, sim = j, v
			}
		}
		if match >= 0 {
			used[match] = true
			sum.Matched++
		}

		completeness := Completeness(run1[i])
		conf := clamp01(0.2 + 0.8*sim*completeness)
		r := Result{
			Index:         i,
			MatchedIndex:  match,
			Similarity:    sim,
			Completeness:  completeness,
			Confidence:    conf,
			FlagForReview: conf < s.minConfidence || sim < s.minSimilarity,
		}
		if r.FlagForReview {
			sum.Flagged++
		}
		results = append(results, r)
	}

	sum.Unmatched = len(run1) - sum.Matched
	sum.Extra = len(run2) - sum.Matched
	if len(results) > 0 {
		total, lowest := 0.0, 1.0
		for _, r := range results {
			total += r.Confidence
			lowest = math.Min(lowest, r.Confidence)
		}
		sum.MeanConfidence = total / float64(len(results))
		sum.MinConfidence = lowest
	}
	return results, sum
}

// Similarity is the weighted field similarity of two records, in [0,1].
func Similarity(a, b schedule.Record) float64 {
	s := weightName*tokenSim(&a.ItemName, &b.ItemName) +
		weightTotal*numberSim(a.TotalPrice, b.TotalPrice) +
		weightStart*dateSim(a.StartDate, b.StartDate) +
		weightUnit*equalSim(a.FrequencyUnit, b.FrequencyUnit) +
		weightEvery*equalSim(a.FrequencyEvery, b.FrequencyEvery) +
		weightLabel*tokenSim(a.ScheduleLabel, b.ScheduleLabel) +
		weightEvent*tokenSim(a.EventToTrack, b.EventToTrack) +
		weightTiers*tierSim(a.Tiers, b.Tiers)
	return clamp01(s)
}

// Completeness is 1 minus up to 0.5 for missing item name, total price,
// start date, frequency unit and periods.
func Completeness(r schedule.Record) float64 {
	missing := 0
	if r.ItemName == "" {
		missing++
	}
	if r.TotalPrice == nil {
		missing++
	}
	if r.StartDate == nil {
		missing++
	}
	if r.FrequencyUnit == "" {
		missing++
	}
	if r.Periods < 1 {
		missing++
	}
	return 1 - maxIncompletion*float64(missing)/5
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

func tokens(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range tokenSplit.Split(strings.ToLower(s), -1) {
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

// tokenSim is token Jaccard. Two absent values agree; one absent value
// does not.
func tokenSim(a, b *string) float64 {
	ta, tb := presentTokens(a), presentTokens(b)
	switch {
	case ta == nil && tb == nil:
		return 1
	case ta == nil || tb == nil:
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(ta)+len(tb)-inter)
}

func presentTokens(s *string) map[string]struct{} {
	if s == nil {
		return nil
	}
	t := tokens(*s)
	if len(t) == 0 {
		return nil
	}
	return t
}

// numberSim is 1 minus the relative difference.
func numberSim(a, b *float64) float64 {
	switch {
	case a == nil && b == nil:
		return 1
	case a == nil || b == nil:
		return 0
	}
	d := math.Max(math.Abs(*a), math.Abs(*b))
	if d == 0 {
		return 1
	}
	return clamp01(1 - math.Abs(*a-*b)/d)
}

func dateSim(a, b *string) float64 {
	switch {
	case a == nil && b == nil:
		return 1
	case a == nil || b == nil:
		return 0
	}
	ta, errA := time.Parse(time.DateOnly, *a)
	tb, errB := time.Parse(time.DateOnly, *b)
	if errA != nil || errB != nil {
		if *a == *b {
			return 1
		}
		return 0
	}
	days := math.Abs(ta.Sub(tb).Hours()) / 24
	return math.Exp(-days / dateScaleDays)
}

func equalSim[T comparable](a, b T) float64 {
	if a == b {
		return 1
	}
	return 0
}

// tierSim compares tiers position by position; unpaired tiers score 0.
func tierSim(a, b []schedule.Tier) float64 {
	n := max(len(a), len(b))
	if n == 0 {
		return 1
	}
	total := 0.0
	for i := range min(len(a), len(b)) {
		total += 0.3*tokenSim(a[i].Name, b[i].Name) +
			0.5*numberSim(a[i].Price, b[i].Price) +
			0.2*numberSim(a[i].MinQuantity, b[i].MinQuantity)
	}
	return total / float64(n)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

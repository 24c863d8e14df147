// Package extraction decodes model-produced extraction payloads, recovering
// from the malformed text models tend to emit.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/okian/revsched/internal/domain/schedule"
)

// ParseFailureIssue is reported when no JSON object can be recovered.
const ParseFailureIssue = "Could not parse model JSON"

// TotalsCheck is the model's own arithmetic over the document.
type TotalsCheck struct {
	SumOfItems    *float64 `json:"sum_of_items"`
	ContractTotal *float64 `json:"contract_total_if_any"`
	Matches       *bool    `json:"matches"`
	Notes         *string  `json:"notes"`
}

// Recommendations are the model's hints to the caller.
type Recommendations struct {
	ForceMulti *bool    `json:"force_multi"`
	Reasons    []string `json:"reasons"`
}

// Customer identifies the contracting party when the model found one.
type Customer struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Email   *string `json:"email"`
}

// Run is one decoded extraction result.
type Run struct {
	Schedules       []schedule.RawItem `json:"schedules"`
	Issues          []string           `json:"issues"`
	TotalsCheck     *TotalsCheck       `json:"totals_check"`
	Recommendations *Recommendations   `json:"model_recommendations"`
	Customer        *Customer          `json:"customer"`

	// Recovered is set when the object had to be cut out of surrounding text.
	Recovered bool `json:"-"`
	// Failed is set when nothing could be recovered.
	Failed bool `json:"-"`
}

// Parse decodes model output. Valid JSON that is not an object returns
// ErrNotObject. Invalid text is retried on the span between the first "{"
// and the last "}"; if that fails too the result is an empty run carrying
// ParseFailureIssue, never an error.
func Parse(text []byte) (Run, error) {
	text = bytes.TrimSpace(text)
	if gjson.ValidBytes(text) {
		res := gjson.ParseBytes(text)
		if !res.IsObject() {
			return Run{}, ErrNotObject
		}
		return decode(res), nil
	}

	start, end := bytes.IndexByte(text, '{'), bytes.LastIndexByte(text, '}')
	if start >= 0 && end > start && gjson.ValidBytes(text[start:end+1]) {
		run := decode(gjson.ParseBytes(text[start : end+1]))
		run.Recovered = true
		return run, nil
	}
	return Run{Schedules: []schedule.RawItem{}, Issues: []string{ParseFailureIssue}, Failed: true}, nil
}

func decode(res gjson.Result) Run {
	run := Run{Schedules: []schedule.RawItem{}, Issues: []string{}}

	for _, is := range array(res.Get("issues")) {
		if is.Type == gjson.String {
			run.Issues = append(run.Issues, is.Str)
		}
	}
	for i, item := range array(res.Get("schedules")) {
		m, ok := item.Value().(map[string]any)
		if !item.IsObject() || !ok {
			run.Issues = append(run.Issues, fmt.Sprintf("Skipped schedules[%d]: not an object", i))
			continue
		}
		run.Schedules = append(run.Schedules, m)
	}

	if tc := res.Get("totals_check"); tc.IsObject() {
		run.TotalsCheck = &TotalsCheck{
			SumOfItems:    number(tc.Get("sum_of_items")),
			ContractTotal: number(tc.Get("contract_total_if_any")),
			Matches:       boolean(tc.Get("matches")),
			Notes:         str(tc.Get("notes")),
		}
	}
	if mr := res.Get("model_recommendations"); mr.IsObject() {
		run.Recommendations = &Recommendations{ForceMulti: boolean(mr.Get("force_multi")), Reasons: []string{}}
		for _, r := range array(mr.Get("reasons")) {
			if r.Type == gjson.String {
				run.Recommendations.Reasons = append(run.Recommendations.Reasons, r.Str)
			}
		}
	}
	if c := res.Get("customer"); c.IsObject() {
		run.Customer = &Customer{
			Name:    str(c.Get("name")),
			Address: str(c.Get("address")),
			Email:   str(c.Get("email")),
		}
	}
	return run
}

// FromValue converts an already decoded JSON value into a Run.
func FromValue(v any) (Run, error) {
	switch t := v.(type) {
	case string:
		return Parse([]byte(t))
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return Run{}, fmt.Errorf("encode run: %w", err)
		}
		return Parse(b)
	default:
		return Run{}, ErrNotObject
	}
}

// ReconcileTotals compares the summed review totals with the contract
// total the model reported. It returns an issue when they differ by more
// than 1%.
func ReconcileTotals(records []schedule.Record, tc *TotalsCheck) (string, bool) {
	if tc == nil || tc.ContractTotal == nil || *tc.ContractTotal <= 0 {
		return "", false
	}
	sum := decimal.Zero
	for _, r := range records {
		if r.TotalValue != nil {
			sum = sum.Add(decimal.NewFromFloat(*r.TotalValue))
		}
	}
	contract := decimal.NewFromFloat(*tc.ContractTotal)
	diff := sum.Sub(contract).Abs().Div(contract)
	if diff.LessThanOrEqual(decimal.NewFromFloat(0.01)) {
		return "", false
	}
	return fmt.Sprintf("Schedule total %s differs from contract total %s by %s%%",
		sum.StringFixed(2), contract.StringFixed(2), diff.Mul(decimal.NewFromInt(100)).StringFixed(1)), true
}

// array yields the elements of r, or nothing when r is not an array.
func array(r gjson.Result) []gjson.Result {
	if !r.IsArray() {
		return nil
	}
	return r.Array()
}

func number(r gjson.Result) *float64 {
	if r.Type != gjson.Number || math.IsNaN(r.Num) || math.IsInf(r.Num, 0) {
		return nil
	}
	v := r.Num
	return &v
}

func boolean(r gjson.Result) *bool {
	if !r.IsBool() {
		return nil
	}
	v := r.Bool()
	return &v
}

func str(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	v := r.Str
	return &v
}

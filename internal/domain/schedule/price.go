package schedule

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceSource names the precedence tier that produced a price.
type PriceSource string

// Price sources, strongest first.
const (
	SourceStructured   PriceSource = "structured"
	SourceText         PriceSource = "text"
	SourceExplicitZero PriceSource = "explicit_zero"
	SourceNone         PriceSource = "none"
)

// Fixed issue texts. They must not vary with the input so that
// re-normalizing a record never produces a second copy.
const (
	ExplicitZeroIssue = "Price resolved to 0 from an explicit zero signal (free, waived or $0); confirm the item is intentionally free"
	MissingPriceIssue = "No price found in structured fields or text; total_price left null for review"
)

// Structured price fields in priority order.
var structuredPriceFields = []string{
	"total_price",
	"amount",
	"price",
	"line_total",
	"total",
	"recurring_price",
	"price_per_period",
	"monthly_price",
	"annual_price",
	"fee",
	"setup_fee",
	"one_time_fee",
	"implementation_fee",
}

// zeroRe only accepts a standalone "free"; "toll-free" or "tax-free" say
// nothing about price.
var (
	currencyRe = regexp.MustCompile(`\$\s?((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)`)
	zeroRe     = regexp.MustCompile(`(?:^|[^\w-])free\b|\b(?:waived?|complimentary|no[- ]charge)\b|\$\s?0(?:\.0{1,2})?(?:[^\d.,]|$)|100\s?%\s?(?:discount|off)`)
)

type cadence struct {
	unit  FrequencyUnit
	words []string
}

var cadences = []cadence{
	{FrequencyNone, []string{"one-time", "one time", "setup", "set-up", "implementation", "upfront", "onboarding"}},
	{Days, []string{"daily", "/day", "per day"}},
	{Weeks, []string{"week", "/wk"}},
	{SemiMonths, []string{"semi-month", "semimonth", "twice a month"}},
	{Months, []string{"month", "/mo"}},
	{Years, []string{"annual", "yearly", "per year", "/yr", "/year"}},
}

var adjustmentWords = []string{"discount", "credit", "tax", "refund", "rebate"}

// PriceResolution is the outcome of resolving one record's price.
type PriceResolution struct {
	Price  *float64
	Source PriceSource
	Issue  string
}

// PriceResolver picks exactly one non-negative price for a record.
type PriceResolver struct {
	window int
}

// NewPriceResolver returns a resolver scoring ±48 characters around each
// currency token.
func NewPriceResolver() *PriceResolver {
	return &PriceResolver{window: 48}
}

// Resolve applies the price precedence: structured fields, then the best
// currency token found in text, then an explicit zero signal. When none
// applies the price stays nil and the resolution carries a gap issue.
// rec supplies the billing type, cadence and texts of the finalized record.
func (p *PriceResolver) Resolve(raw RawItem, rec *Record) PriceResolution {
	price, sawZero := p.structured(raw)
	if price != nil {
		return PriceResolution{Price: price, Source: SourceStructured}
	}
	if rec.BillingType == UnitPrice && rec.PricePerUnit != nil {
		v := decimal.NewFromFloat(*rec.PricePerUnit)
		if v.IsPositive() {
			return PriceResolution{Price: money(v), Source: SourceStructured}
		}
		if v.IsZero() {
			sawZero = true
		}
	}

	if v, ok := p.fromText(rec); ok {
		return PriceResolution{
			Price:  money(v),
			Source: SourceText,
			Issue:  fmt.Sprintf("total_price %s recovered from text; no structured price field was present", v.StringFixed(2)),
		}
	}

	if sawZero || p.zeroSignal(rec) {
		return PriceResolution{Price: ptr(0.0), Source: SourceExplicitZero, Issue: ExplicitZeroIssue}
	}
	return PriceResolution{Source: SourceNone, Issue: MissingPriceIssue}
}

// structured returns the first positive structured price and whether any
// structured field held an explicit zero.
func (p *PriceResolver) structured(raw RawItem) (*float64, bool) {
	sawZero := false
	for _, f := range structuredPriceFields {
		v, ok := parseMoney(raw[f])
		if !ok {
			continue
		}
		if v.IsPositive() {
			return money(v), sawZero
		}
		if v.IsZero() {
			sawZero = true
		}
	}
	return nil, sawZero
}

// fromText returns the highest-scoring positive currency amount. Later
// occurrences win ties.
func (p *PriceResolver) fromText(rec *Record) (decimal.Decimal, bool) {
	var (
		best      decimal.Decimal
		bestScore = math.Inf(-1)
		found     bool
	)
	for _, text := range rec.texts() {
		lower := strings.ToLower(text)
		for _, m := range currencyRe.FindAllStringSubmatchIndex(lower, -1) {
			v, ok := parseMoney(lower[m[2]:m[3]])
			if !ok || !v.IsPositive() {
				continue
			}
			s := p.score(lower[max(0, m[0]-p.window):min(len(lower), m[1]+p.window)], rec.FrequencyUnit)
			if s >= bestScore {
				best, bestScore, found = v, s, true
			}
		}
	}
	return best, found
}

func (p *PriceResolver) score(ctx string, unit FrequencyUnit) float64 {
	s := 0.0
	for _, c := range cadences {
		if !containsAny(ctx, c.words...) {
			continue
		}
		if c.unit == unit {
			s += 2
		} else {
			s -= 1.5
		}
	}
	if containsAny(ctx, adjustmentWords...) {
		s -= 2
	}
	if strings.Contains(ctx, "total") {
		s++
	}
	if strings.Contains(ctx, "line total") {
		s += 1.5
	}
	return s
}

func (p *PriceResolver) zeroSignal(rec *Record) bool {
	for _, text := range rec.texts() {
		if zeroRe.MatchString(strings.ToLower(text)) {
			return true
		}
	}
	return false
}

// parseMoney accepts JSON numbers and money strings such as "$1,200.00".
func parseMoney(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case string:
		s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(n))
		s = strings.TrimSuffix(strings.ToLower(s), "usd")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		f, ok := toNumber(v)
		if !ok {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	}
}

// money rounds to cents.
func money(d decimal.Decimal) *float64 {
	return ptr(d.Round(2).InexactFloat64())
}

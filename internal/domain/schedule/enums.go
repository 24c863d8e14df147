package schedule

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ClampEnum returns the canonical member of allowed matching value
// case-insensitively, or fallback for no match, nil or non-text input.
func ClampEnum(value any, allowed []string, fallback string) string {
	s, ok := value.(string)
	if !ok || s == "" {
		return fallback
	}
	for _, a := range allowed {
		if strings.EqualFold(a, strings.TrimSpace(s)) {
			return a
		}
	}
	return fallback
}

// BillingHints are the record properties that can promote a billing type
// when the model's label is missing or garbled.
type BillingHints struct {
	HasTiers        bool
	HasPricePerUnit bool
	HasUnitLabel    bool
}

// NormalizeBillingType maps a free-text billing label onto the billing
// vocabulary. Explicit tier and unit wording wins, then tiers, then an
// explicit flat label, then per-unit hints; Flat price otherwise.
func NormalizeBillingType(label any, hints BillingHints) BillingType {
	t, _ := label.(string)
	t = strings.ToLower(t)
	var bt BillingType
	switch {
	case strings.Contains(t, "tier") && strings.Contains(t, "unit"):
		bt = TierUnitPrice
	case strings.Contains(t, "tier") && strings.Contains(t, "flat"):
		bt = TierFlatPrice
	case strings.Contains(t, "unit"):
		bt = UnitPrice
	case hints.HasTiers:
		bt = TierUnitPrice
	case strings.Contains(t, "flat"):
		bt = FlatPrice
	case hints.HasPricePerUnit || hints.HasUnitLabel:
		bt = UnitPrice
	default:
		bt = FlatPrice
	}
	return BillingType(ClampEnum(string(bt), BillingTypes, string(FlatPrice)))
}

// NormalizeFrequency resolves the billing cadence. A valid rawUnit wins;
// otherwise freeText is classified by keyword in the fixed order
// one-time/none, annual, quarter, month, week, semi, day. A bare "year"
// is not a cadence ("3-year term"). Quarter is always every 3 months.
// Unmatched text yields fallback. every is forced to 1 for None.
func NormalizeFrequency(freeText, rawEvery, rawUnit any, fallback FrequencyUnit) (int, FrequencyUnit) {
	every, ok := positiveInt(rawEvery)
	if !ok {
		every = 1
	}

	unit := FrequencyUnit(ClampEnum(rawUnit, FrequencyUnits, ""))
	if unit == "" {
		txt, _ := freeText.(string)
		txt = strings.ToLower(strings.TrimSpace(txt))
		switch {
		case txt == "" || txt == "none" || containsAny(txt, "one-time", "one time", "onetime"):
			unit = FrequencyNone
		case containsAny(txt, "annual", "yearly", "per year", "a year", "/yr", "/year"):
			unit = Years
		case strings.Contains(txt, "quarter"):
			unit = Months
			every = 3
		case strings.Contains(txt, "month"):
			unit = Months
		case strings.Contains(txt, "week"):
			unit = Weeks
		case strings.Contains(txt, "semi"):
			unit = SemiMonths
		case containsAny(txt, "day", "daily"):
			unit = Days
		default:
			unit = fallback
		}
	}
	if unit == FrequencyNone {
		every = 1
	}
	return every, unit
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// toNumber coerces JSON numbers and plain numeric strings.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// pickNumber returns v as a number or nil.
func pickNumber(v any) *float64 {
	f, ok := toNumber(v)
	if !ok {
		return nil
	}
	return &f
}

// integer returns v when it is a whole number.
func integer(v any) (int, bool) {
	f, ok := toNumber(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func positiveInt(v any) (int, bool) {
	n, ok := integer(v)
	if !ok || n < 1 {
		return 0, false
	}
	return n, true
}

// pickString returns a trimmed non-empty string or nil.
func pickString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func pickBool(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

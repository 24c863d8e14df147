package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Normalizer converts raw line items into canonical records.
type Normalizer struct {
	brandTerms    []string
	unitNouns     []string
	usageKeywords []string
	evidenceLimit int

	policy *PolicyEngine
	prices *PriceResolver
}

// NewNormalizer returns a Normalizer using the default policy tables
// unless overridden by options.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		brandTerms:    DefaultBrandTerms,
		unitNouns:     DefaultUnitNouns,
		usageKeywords: DefaultUsageKeywords,
		evidenceLimit: 8,
		prices:        NewPriceResolver(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.policy = NewPolicyEngine(n.brandTerms, n.unitNouns, n.usageKeywords)
	return n
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Normalize builds a record from raw. It never fails: malformed values are
// replaced with defaults or nulls and the correction is noted in Issues.
// Normalize(ToRaw(Normalize(x))) equals Normalize(x).
func (n *Normalizer) Normalize(raw RawItem) Record {
	rec := Record{Tiers: []Tier{}, Evidence: []Evidence{}, Issues: []string{}}
	if list, ok := raw["issues"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				rec.AddIssue(strings.TrimSpace(s))
			}
		}
	}

	tiers := n.tiers(raw["tiers"])
	ppu := nonNegative(&rec, "price_per_unit", raw["price_per_unit"])
	unitLabel := pickString(raw["unit_label"])

	rec.BillingType = NormalizeBillingType(raw["billing_type"], BillingHints{
		HasTiers:        len(tiers) > 0,
		HasPricePerUnit: ppu != nil,
		HasUnitLabel:    unitLabel != nil,
	})
	rec.FrequencyEvery, rec.FrequencyUnit = NormalizeFrequency(raw["frequency"], raw["frequency_every"], raw["frequency_unit"], FrequencyNone)

	rec.Quantity = pickNumber(raw["quantity"])
	if rec.Quantity != nil && *rec.Quantity <= 0 {
		rec.AddIssue(fmt.Sprintf("Ignored non-positive quantity %v", *rec.Quantity))
		rec.Quantity = nil
	}
	if rec.BillingType == FlatPrice {
		rec.Quantity = ptr(1.0)
	}

	rec.ScheduleLabel = pickString(raw["schedule_label"])
	if name := pickString(raw["item_name"]); name != nil {
		rec.ItemName = *name
	} else {
		rec.AddIssue("Missing item_name")
	}
	rec.Description = pickString(raw["description"])
	rec.StartDate = n.date(&rec, "start_date", raw["start_date"])
	rec.CalculatedEndDate = n.date(&rec, "calculated_end_date", raw["calculated_end_date"])

	if m, ok := positiveInt(raw["months_of_service"]); ok {
		rec.MonthsOfService = &m
	}
	rec.Periods = 1
	if v, present := raw["periods"]; present && v != nil {
		if p, ok := positiveInt(v); ok {
			rec.Periods = p
		} else {
			rec.AddIssue(fmt.Sprintf("Invalid periods %v replaced with 1", v))
		}
	}
	if t, ok := integer(raw["net_terms"]); ok {
		if t < 0 {
			rec.AddIssue(fmt.Sprintf("Negative net_terms %d replaced with 0", t))
			t = 0
		}
		rec.NetTerms = t
	}
	rec.RevRecCategory = pickString(raw["rev_rec_category"])

	rec.EventToTrack = pickString(raw["event_to_track"])
	rec.UnitLabel = unitLabel
	rec.PricePerUnit = ppu
	rec.VolumeBased = pickBool(raw["volume_based"])
	rec.Tiers = tiers
	rec.Evidence = n.evidence(&rec, raw["evidence"])

	if v, ok := raw["total_price"]; ok {
		nonNegative(&rec, "total_price", v)
	}
	// Seed total_price so the policy can derive price_per_unit from it.
	rec.TotalPrice, _ = n.prices.structured(raw)
	n.policy.Apply(&rec)

	res := n.prices.Resolve(raw, &rec)
	rec.TotalPrice = res.Price
	rec.AddIssue(res.Issue)

	rec.TotalValue = totalValue(&rec)
	return rec
}

// Policy exposes the engine used by the normalizer.
func (n *Normalizer) Policy() *PolicyEngine { return n.policy }

// NormalizeAll normalizes every item in order.
func (n *Normalizer) NormalizeAll(items []RawItem) []Record {
	out := make([]Record, 0, len(items))
	for _, item := range items {
		out = append(out, n.Normalize(item))
	}
	return out
}

func (n *Normalizer) tiers(v any) []Tier {
	list, ok := v.([]any)
	if !ok {
		return []Tier{}
	}
	out := make([]Tier, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		t := Tier{
			Name:        pickString(m["tier_name"]),
			AppliedWhen: pickString(m["applied_when"]),
			MinQuantity: pickNumber(m["min_quantity"]),
		}
		if d, ok := parseMoney(m["price"]); ok {
			t.Price = money(d)
		}
		out = append(out, t)
	}
	return out
}

func (n *Normalizer) evidence(rec *Record, v any) []Evidence {
	list, ok := v.([]any)
	if !ok {
		return []Evidence{}
	}
	out := make([]Evidence, 0, min(len(list), n.evidenceLimit))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		snippet := pickString(m["snippet"])
		if snippet == nil {
			continue
		}
		page, _ := integer(m["page"])
		if len(out) == n.evidenceLimit {
			rec.AddIssue(fmt.Sprintf("Evidence truncated to %d entries", n.evidenceLimit))
			break
		}
		out = append(out, Evidence{Page: page, Snippet: *snippet})
	}
	return out
}

func (n *Normalizer) date(rec *Record, field string, v any) *string {
	s := pickString(v)
	if s == nil {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return ptr(t.Format(time.DateOnly))
		}
	}
	rec.AddIssue(fmt.Sprintf("Unrecognized %s %q dropped", field, *s))
	return nil
}

// nonNegative parses a money value, rejecting negatives with an issue.
func nonNegative(rec *Record, field string, v any) *float64 {
	d, ok := parseMoney(v)
	if !ok {
		return nil
	}
	if d.IsNegative() {
		rec.AddIssue(fmt.Sprintf("Negative %s %s ignored", field, d.String()))
		return nil
	}
	return money(d)
}

// totalValue is price times billed periods, falling back to the unit price.
func totalValue(rec *Record) *float64 {
	periods := int64(rec.Periods)
	if rec.FrequencyUnit == FrequencyNone {
		periods = 1
	}
	price := rec.TotalPrice
	if price == nil {
		price = rec.PricePerUnit
	}
	if price == nil {
		return nil
	}
	return money(decimal.NewFromFloat(*price).Mul(decimal.NewFromInt(periods)))
}

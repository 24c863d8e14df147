package schedule

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Default policy tables.
var (
	DefaultBrandTerms = []string{"luxury presence"}

	DefaultUnitNouns = []string{
		"seat", "user", "license", "impression", "click", "lead", "call",
		"minute", "hour", "unit", "listing", "agent", "transaction", "message",
		"sms", "email", "request", "gb", "location", "account",
	}

	DefaultUsageKeywords = []string{
		"usage", "metered", "metering", "overage", "consumption",
		"pay-as-you-go", "pay as you go",
	}
)

// PolicyEngine applies the fixed billing policy to a normalized record.
type PolicyEngine struct {
	brandTerms    []string
	usageKeywords []string
	unitPhrase    *regexp.Regexp
}

// NewPolicyEngine builds an engine from the given tables. Terms are
// matched case-insensitively as substrings; unit nouns are matched after
// "per", "each" or "/" with an optional plural "s".
func NewPolicyEngine(brandTerms, unitNouns, usageKeywords []string) *PolicyEngine {
	return &PolicyEngine{
		brandTerms:    lowerAll(brandTerms),
		usageKeywords: lowerAll(usageKeywords),
		unitPhrase:    unitPhraseRe(unitNouns),
	}
}

func unitPhraseRe(nouns []string) *regexp.Regexp {
	quoted := make([]string, 0, len(nouns))
	for _, n := range lowerAll(nouns) {
		quoted = append(quoted, regexp.QuoteMeta(n))
	}
	if len(quoted) == 0 {
		return nil
	}
	// Longest nouns first.
	slices.SortFunc(quoted, func(a, b string) int { return len(b) - len(a) })
	// An amount directly before the phrase ("$20 per seat") is captured too.
	return regexp.MustCompile(`(?:\$\s?((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)\s*)?(?:\bper\b|\beach\b|/)\s*(` + strings.Join(quoted, "|") + `)s?\b`)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Apply enforces, in order: the brand override, evidence-gated promotion,
// completion of the Unit price invariant and tier removal for non-tier
// types. Every change is recorded as an issue on rec.
func (p *PolicyEngine) Apply(rec *Record) {
	if term, ok := p.brandMatch(rec); ok {
		rec.forceFlat()
		rec.clearUsage()
		rec.AddIssue(fmt.Sprintf("Brand override: %q items are always billed as Flat price with quantity 1", term))
		return
	}

	switch {
	case rec.BillingType.IsTier() && len(rec.Tiers) == 0:
		from := rec.BillingType
		rec.forceFlat()
		rec.AddIssue(fmt.Sprintf("Demoted %s to Flat price: no tiers were provided", from))
	case rec.BillingType == UnitPrice:
		p.gateUnit(rec)
	}

	if !rec.BillingType.IsTier() && len(rec.Tiers) > 0 {
		rec.AddIssue(fmt.Sprintf("Dropped %d tier(s): %s does not use tiers", len(rec.Tiers), rec.BillingType))
		rec.Tiers = []Tier{}
	}
}

func (p *PolicyEngine) gateUnit(rec *Record) {
	if len(rec.Tiers) > 0 {
		rec.BillingType = TierUnitPrice
		rec.AddIssue("Promoted Unit price to Tier unit price: tiers were provided")
		return
	}
	phrase, phrased := p.unitPhraseMatch(rec)
	paired := rec.PricePerUnit != nil && rec.UnitLabel != nil
	if paired {
		return
	}
	if !phrased && !p.usage(rec) {
		p.demoteUnit(rec, "no per-unit phrasing, usage keyword, or price_per_unit with unit_label")
		return
	}

	label, ppu := rec.UnitLabel, rec.PricePerUnit
	if label == nil && phrased {
		label = ptr(phrase.noun)
	}
	var (
		derived decimal.Decimal
		source  string
	)
	switch {
	case ppu != nil:
	case phrased && phrase.hasAmount:
		derived, source = phrase.amount, "per-unit phrasing"
		ppu = money(derived)
	case rec.TotalPrice != nil && rec.Quantity != nil && *rec.Quantity > 0:
		derived, source = decimal.NewFromFloat(*rec.TotalPrice).Div(decimal.NewFromFloat(*rec.Quantity)), "total_price / quantity"
		ppu = money(derived)
	}
	if label == nil || ppu == nil {
		p.demoteUnit(rec, "price_per_unit and unit_label could not both be determined")
		return
	}
	if rec.UnitLabel == nil {
		rec.AddIssue(fmt.Sprintf("Derived unit_label %q from per-unit phrasing", *label))
	}
	if rec.PricePerUnit == nil {
		rec.AddIssue(fmt.Sprintf("Derived price_per_unit %s from %s", derived.StringFixed(2), source))
	}
	rec.UnitLabel, rec.PricePerUnit = label, ppu
}

func (p *PolicyEngine) demoteUnit(rec *Record, cause string) {
	rec.forceFlat()
	rec.clearUsage()
	rec.AddIssue("Demoted Unit price to Flat price: " + cause)
}

func (p *PolicyEngine) brandMatch(rec *Record) (string, bool) {
	for _, text := range rec.texts() {
		lower := strings.ToLower(text)
		for _, term := range p.brandTerms {
			if strings.Contains(lower, term) {
				return term, true
			}
		}
	}
	return "", false
}

// phraseMatch is a matched "per seat" style phrase, with the amount that
// directly precedes it when there is one.
type phraseMatch struct {
	noun      string
	amount    decimal.Decimal
	hasAmount bool
}

// unitPhraseMatch returns the first per-unit phrase in the record texts,
// preferring one that carries a positive amount.
func (p *PolicyEngine) unitPhraseMatch(rec *Record) (phraseMatch, bool) {
	if p.unitPhrase == nil {
		return phraseMatch{}, false
	}
	var (
		first phraseMatch
		found bool
	)
	for _, text := range rec.texts() {
		for _, m := range p.unitPhrase.FindAllStringSubmatch(strings.ToLower(text), -1) {
			up := phraseMatch{noun: m[2]}
			if v, ok := parseMoney(m[1]); ok && v.IsPositive() {
				up.amount, up.hasAmount = v, true
				return up, true
			}
			if !found {
				first, found = up, true
			}
		}
	}
	return first, found
}

func (p *PolicyEngine) usage(rec *Record) bool {
	for _, text := range rec.texts() {
		if containsAny(strings.ToLower(text), p.usageKeywords...) {
			return true
		}
	}
	return false
}

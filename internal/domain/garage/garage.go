// Package garage maps canonical schedule records onto the record shape
// consumed by the downstream billing system.
package garage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/revsched/internal/domain/catalog"
	"github.com/okian/revsched/internal/domain/schedule"
)

// Unit is the billing system's native period unit.
type Unit string

// Native period units.
const (
	UnitNone      Unit = "NONE"
	UnitDays      Unit = "DAYS"
	UnitSemiMonth Unit = "SEMI_MONTH"
	UnitMonth     Unit = "MONTH"
	UnitQuarter   Unit = "QUARTER"
	UnitYear      Unit = "YEAR"
)

// BillingType is the billing system's pricing model.
type BillingType string

// Native billing types.
const (
	FlatPrice     BillingType = "FLAT_PRICE"
	UnitPrice     BillingType = "UNIT_PRICE"
	TierFlatPrice BillingType = "TIER_FLAT_PRICE"
	TierUnitPrice BillingType = "TIER_UNIT_PRICE"
)

// OperatorGTE is the only tier condition the mapper synthesizes.
const OperatorGTE = "GREATER_THAN_OR_EQUAL"

var billingTypes = map[schedule.BillingType]BillingType{
	schedule.FlatPrice:     FlatPrice,
	schedule.UnitPrice:     UnitPrice,
	schedule.TierFlatPrice: TierFlatPrice,
	schedule.TierUnitPrice: TierUnitPrice,
}

// PricingTier is one tier in mantissa/exponent form.
type PricingTier struct {
	Tier              int      `json:"tier"`
	Mantissa          int64    `json:"mantissa"`
	Exponent          int32    `json:"exponent"`
	ConditionValue    *float64 `json:"condition_value"`
	ConditionOperator *string  `json:"condition_operator"`
	Name              *string  `json:"name"`
}

// Record is the billing system's schedule shape.
type Record struct {
	ServiceStartDate *string       `json:"service_start_date"`
	ServiceTerm      int           `json:"service_term"`
	ItemName         string        `json:"item_name"`
	ItemDescription  *string       `json:"item_description"`
	StartDate        *string       `json:"start_date"`
	FrequencyUnit    Unit          `json:"frequency_unit"`
	Period           int           `json:"period"`
	NumberOfPeriods  int           `json:"number_of_periods"`
	BillingType      BillingType   `json:"billing_type"`
	EventToTrack     *string       `json:"event_to_track"`
	IntegrationItem  *string       `json:"integration_item"`
	NetTerms         int           `json:"net_terms"`
	Quantity         float64       `json:"quantity"`
	TotalPrice       float64       `json:"total_price"`
	PricingTiers     []PricingTier `json:"pricing_tiers"`
}

// Matcher resolves item names to integration items.
type Matcher interface {
	Match(name string) (catalog.Match, bool)
}

// Mapper converts schedule records. It holds no mutable state.
type Mapper struct {
	catalog            Matcher
	oneTimeName        string
	oneTimeDescription string
}

// New returns a Mapper resolving integration items through m.
func New(m Matcher, opts ...Option) *Mapper {
	mp := &Mapper{
		catalog:            m,
		oneTimeName:        DefaultOneTimeName,
		oneTimeDescription: DefaultOneTimeDescription,
	}
	for _, opt := range opts {
		opt(mp)
	}
	return mp
}

// Map converts one record. The returned issues describe every value the
// mapper had to default.
func (m *Mapper) Map(rec schedule.Record) (Record, []string) {
	var issues []string
	note := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	term := ServiceTerm(rec)
	unit, period, n := Periodicity(rec.FrequencyUnit, rec.FrequencyEvery, term)

	out := Record{
		ServiceStartDate: rec.StartDate,
		ServiceTerm:      term,
		ItemName:         rec.ItemName,
		ItemDescription:  rec.Description,
		StartDate:        rec.StartDate,
		FrequencyUnit:    unit,
		Period:           period,
		NumberOfPeriods:  n,
		BillingType:      billingTypes[rec.BillingType],
		EventToTrack:     rec.EventToTrack,
		NetTerms:         max(rec.NetTerms, 0),
		Quantity:         1,
		PricingTiers:     []PricingTier{},
	}
	if out.BillingType == "" {
		out.BillingType = FlatPrice
	}

	if isOneTime(rec) {
		if out.ItemName == "" {
			out.ItemName = m.oneTimeName
			note("Missing item name on one-time item; used default %q", m.oneTimeName)
		}
		if out.ItemDescription == nil && m.oneTimeDescription != "" {
			d := m.oneTimeDescription
			out.ItemDescription = &d
		}
	}

	if m.catalog != nil && out.ItemName != "" {
		if match, ok := m.catalog.Match(out.ItemName); ok {
			id := match.ID
			out.IntegrationItem = &id
		} else {
			note("No catalog match for %q", out.ItemName)
		}
	}

	if out.BillingType != FlatPrice && rec.Quantity != nil {
		out.Quantity = *rec.Quantity
	}

	if rec.TotalPrice != nil {
		out.TotalPrice = math.Max(0, *rec.TotalPrice)
	} else {
		note("total_price for %q was unresolved; sent as 0", out.ItemName)
	}

	for i, t := range rec.Tiers {
		pt := PricingTier{Tier: i + 1, Name: t.Name}
		if t.Price != nil {
			var exact bool
			pt.Mantissa, pt.Exponent, exact = mantissa(*t.Price)
			if !exact {
				note("Tier %d price of %q rounded to fit a 64-bit mantissa", i+1, out.ItemName)
			}
		} else {
			note("Tier %d of %q has no price; sent as 0", i+1, out.ItemName)
		}
		if t.MinQuantity != nil {
			v, op := *t.MinQuantity, OperatorGTE
			pt.ConditionValue, pt.ConditionOperator = &v, &op
		}
		out.PricingTiers = append(out.PricingTiers, pt)
	}
	return out, issues
}

// mantissa splits v into an integer mantissa and a base-10 exponent, e.g.
// 12.5 into 125 and -1. Values whose coefficient overflows int64 are
// rounded to fewer digits and reported as inexact.
func mantissa(v float64) (int64, int32, bool) {
	d, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
	if err != nil {
		d = decimal.NewFromFloat(v)
	}
	exact := true
	for places := -d.Exponent(); !d.Coefficient().IsInt64(); places-- {
		d, exact = d.Round(places-1), false
	}
	return d.Coefficient().Int64(), d.Exponent(), exact
}

// MapAll converts records in order and collects all mapper issues.
func (m *Mapper) MapAll(recs []schedule.Record) ([]Record, []string) {
	out := make([]Record, 0, len(recs))
	var issues []string
	for _, r := range recs {
		g, is := m.Map(r)
		out = append(out, g)
		issues = append(issues, is...)
	}
	return out, issues
}

// ServiceTerm derives the service term in whole months from, in order:
// the start/end date span, months_of_service, the billed periods, 1 for
// one-time items, and 0 otherwise.
func ServiceTerm(rec schedule.Record) int {
	if rec.StartDate != nil && rec.CalculatedEndDate != nil {
		start, errS := time.Parse(time.DateOnly, *rec.StartDate)
		end, errE := time.Parse(time.DateOnly, *rec.CalculatedEndDate)
		if errS == nil && errE == nil && end.After(start) {
			days := end.Sub(start).Hours() / 24
			return max(1, int(math.Round(days/30)))
		}
	}
	if rec.MonthsOfService != nil && *rec.MonthsOfService > 0 {
		return *rec.MonthsOfService
	}
	if per, ok := monthsPer[rec.FrequencyUnit]; ok && rec.Periods > 0 {
		every := max(rec.FrequencyEvery, 1)
		return max(1, int(math.Round(per*float64(every*rec.Periods))))
	}
	if rec.FrequencyUnit == schedule.FrequencyNone {
		return 1
	}
	return 0
}

var monthsPer = map[schedule.FrequencyUnit]float64{
	schedule.Days:       1.0 / 30,
	schedule.Weeks:      7.0 / 30,
	schedule.SemiMonths: 0.5,
	schedule.Months:     1,
	schedule.Years:      12,
}

// Periodicity expresses a schedule cadence in native units: quarterly for
// every 3 months, weeks as 7-day periods. Recurring units always yield at
// least one period; one-time items exactly one.
func Periodicity(unit schedule.FrequencyUnit, every, term int) (Unit, int, int) {
	every = max(every, 1)
	daysInTerm := float64(term) * 365 / 12
	switch unit {
	case schedule.Months:
		if every == 3 {
			return UnitQuarter, 1, max(1, term/3)
		}
		return UnitMonth, every, max(1, term/every)
	case schedule.Years:
		return UnitYear, every, max(1, term/(12*every))
	case schedule.Weeks:
		return UnitDays, 7 * every, max(1, int(math.Floor(daysInTerm/float64(7*every))))
	case schedule.Days:
		return UnitDays, every, max(1, int(math.Floor(daysInTerm/float64(every))))
	case schedule.SemiMonths:
		return UnitSemiMonth, every, max(1, term*2/every)
	default:
		return UnitNone, 1, 1
	}
}

var oneTimeWords = []string{"setup", "set-up", "set up", "implementation", "onboarding", "one-time", "one time"}

func isOneTime(rec schedule.Record) bool {
	if rec.FrequencyUnit == schedule.FrequencyNone {
		return true
	}
	text := strings.ToLower(rec.ItemName)
	if rec.Description != nil {
		text += " " + strings.ToLower(*rec.Description)
	}
	for _, w := range oneTimeWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

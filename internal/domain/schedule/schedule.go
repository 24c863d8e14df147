// Package schedule turns loosely typed, model-produced line items into
// canonical revenue schedule records and enforces billing policy on them.
//
// Everything in this package is pure: no I/O, no goroutines and no shared
// mutable state. Ambiguity never fails a call; it is recorded as an issue
// on the record instead.
package schedule

import (
	"encoding/json"
	"slices"
)

// BillingType is the pricing model of a schedule.
type BillingType string

// Billing type vocabulary.
const (
	FlatPrice     BillingType = "Flat price"
	UnitPrice     BillingType = "Unit price"
	TierFlatPrice BillingType = "Tier flat price"
	TierUnitPrice BillingType = "Tier unit price"
)

// IsTier reports whether b is one of the tiered billing types.
func (b BillingType) IsTier() bool {
	return b == TierFlatPrice || b == TierUnitPrice
}

// FrequencyUnit is the billing cadence of a schedule.
type FrequencyUnit string

// Frequency unit vocabulary.
const (
	FrequencyNone FrequencyUnit = "None"
	Days          FrequencyUnit = "Day(s)"
	Weeks         FrequencyUnit = "Week(s)"
	SemiMonths    FrequencyUnit = "Semi_month(s)"
	Months        FrequencyUnit = "Month(s)"
	Years         FrequencyUnit = "Year(s)"
)

// BillingTypes lists the allowed billing types in canonical spelling.
var BillingTypes = []string{
	string(FlatPrice),
	string(UnitPrice),
	string(TierFlatPrice),
	string(TierUnitPrice),
}

// FrequencyUnits lists the allowed frequency units in canonical spelling.
var FrequencyUnits = []string{
	string(FrequencyNone),
	string(Days),
	string(Weeks),
	string(SemiMonths),
	string(Months),
	string(Years),
}

// RawItem is one untyped line item as produced by the extraction model.
// Any key may be absent, null or of the wrong type.
type RawItem = map[string]any

// Evidence is a page/snippet pair justifying an extracted value.
type Evidence struct {
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

// Tier is a priced band within tiered billing.
type Tier struct {
	Name        *string  `json:"tier_name"`
	Price       *float64 `json:"price"`
	AppliedWhen *string  `json:"applied_when"`
	MinQuantity *float64 `json:"min_quantity"`
}

// Record is the canonical, validated representation of one billable item.
type Record struct {
	ScheduleLabel *string     `json:"schedule_label"`
	ItemName      string      `json:"item_name"`
	Description   *string     `json:"description"`
	BillingType   BillingType `json:"billing_type"`
	TotalPrice    *float64    `json:"total_price"`
	Quantity      *float64    `json:"quantity"`
	StartDate     *string     `json:"start_date"`

	FrequencyEvery int           `json:"frequency_every"`
	FrequencyUnit  FrequencyUnit `json:"frequency_unit"`

	MonthsOfService   *int    `json:"months_of_service"`
	Periods           int     `json:"periods"`
	CalculatedEndDate *string `json:"calculated_end_date"`
	NetTerms          int     `json:"net_terms"`
	RevRecCategory    *string `json:"rev_rec_category"`

	EventToTrack *string  `json:"event_to_track"`
	UnitLabel    *string  `json:"unit_label"`
	PricePerUnit *float64 `json:"price_per_unit"`
	VolumeBased  *bool    `json:"volume_based"`
	Tiers        []Tier   `json:"tiers"`

	Evidence []Evidence `json:"evidence"`
	Issues   []string   `json:"issues"`

	// TotalValue is review-only: price times billed periods. It is never
	// sent to the billing system.
	TotalValue *float64 `json:"total_value"`
}

// AddIssue appends msg unless the record already carries it.
func (r *Record) AddIssue(msg string) {
	if msg == "" || slices.Contains(r.Issues, msg) {
		return
	}
	r.Issues = append(r.Issues, msg)
}

// clearUsage nulls every usage-specific field.
func (r *Record) clearUsage() {
	r.EventToTrack = nil
	r.UnitLabel = nil
	r.PricePerUnit = nil
	r.VolumeBased = nil
	r.Tiers = []Tier{}
}

// forceFlat sets the record to Flat price with quantity 1.
func (r *Record) forceFlat() {
	r.BillingType = FlatPrice
	r.Quantity = ptr(1.0)
}

// texts returns the free-text fields used for keyword heuristics, evidence
// snippets first.
func (r *Record) texts() []string {
	out := make([]string, 0, len(r.Evidence)+3)
	for _, ev := range r.Evidence {
		out = append(out, ev.Snippet)
	}
	if r.Description != nil {
		out = append(out, *r.Description)
	}
	out = append(out, r.ItemName)
	if r.ScheduleLabel != nil {
		out = append(out, *r.ScheduleLabel)
	}
	return out
}

// ToRaw converts a record back into the raw map shape accepted by
// Normalizer.Normalize.
func ToRaw(r Record) RawItem {
	b, err := json.Marshal(r)
	if err != nil {
		return RawItem{}
	}
	out := RawItem{}
	if err := json.Unmarshal(b, &out); err != nil {
		return RawItem{}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

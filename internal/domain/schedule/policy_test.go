package schedule_test

import (
	"testing"

	"github.com/okian/revsched/internal/domain/schedule"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPolicyEngine(t *testing.T) {
	Convey("Given a policy engine with the default tables", t, func() {
		p := schedule.NewPolicyEngine(schedule.DefaultBrandTerms, schedule.DefaultUnitNouns, schedule.DefaultUsageKeywords)

		Convey("When a protected brand appears in the item name", func() {
			rec := &schedule.Record{
				ItemName:     "Luxury Presence Mobile App User Seat",
				BillingType:  schedule.UnitPrice,
				Quantity:     floatPtr(25),
				UnitLabel:    strPtr("seat"),
				PricePerUnit: floatPtr(10),
				EventToTrack: strPtr("active_user"),
				Tiers:        []schedule.Tier{{Price: floatPtr(5)}},
			}
			p.Apply(rec)

			Convey("Then it is forced to Flat price with quantity 1 and no usage fields", func() {
				So(rec.BillingType, ShouldEqual, schedule.FlatPrice)
				So(*rec.Quantity, ShouldEqual, 1.0)
				So(rec.UnitLabel, ShouldBeNil)
				So(rec.PricePerUnit, ShouldBeNil)
				So(rec.EventToTrack, ShouldBeNil)
				So(rec.VolumeBased, ShouldBeNil)
				So(rec.Tiers, ShouldBeEmpty)
				So(rec.Issues[0], ShouldContainSubstring, "Brand override")
			})
		})

		Convey("When the brand only appears in evidence", func() {
			rec := &schedule.Record{
				ItemName:    "Mobile App",
				BillingType: schedule.TierUnitPrice,
				Tiers:       []schedule.Tier{{Price: floatPtr(5)}},
				Evidence:    []schedule.Evidence{{Page: 1, Snippet: "Powered by LUXURY PRESENCE"}},
			}
			p.Apply(rec)

			Convey("Then the override still applies", func() {
				So(rec.BillingType, ShouldEqual, schedule.FlatPrice)
				So(rec.Tiers, ShouldBeEmpty)
			})
		})

		Convey("When a Unit price record has no unit evidence", func() {
			rec := &schedule.Record{
				ItemName:    "Consulting",
				BillingType: schedule.UnitPrice,
				Quantity:    floatPtr(10),
				TotalPrice:  floatPtr(5000),
			}
			p.Apply(rec)

			Convey("Then it is demoted to Flat price", func() {
				So(rec.BillingType, ShouldEqual, schedule.FlatPrice)
				So(*rec.Quantity, ShouldEqual, 1.0)
				So(rec.Issues, ShouldHaveLength, 1)
				So(rec.Issues[0], ShouldContainSubstring, "Demoted")
			})
		})

		Convey("When a Unit price record carries a price_per_unit and unit_label pair", func() {
			rec := &schedule.Record{
				ItemName:     "IDX Feed",
				BillingType:  schedule.UnitPrice,
				Quantity:     floatPtr(3),
				UnitLabel:    strPtr("feed"),
				PricePerUnit: floatPtr(49),
			}
			p.Apply(rec)

			Convey("Then it is accepted unchanged", func() {
				So(rec.BillingType, ShouldEqual, schedule.UnitPrice)
				So(rec.Issues, ShouldBeEmpty)
			})
		})

		Convey("When per-unit phrasing is present but the pair is incomplete", func() {
			rec := &schedule.Record{
				ItemName:    "Agent Website",
				Description: strPtr("$25 per agent per month"),
				BillingType: schedule.UnitPrice,
				Quantity:    floatPtr(10),
				TotalPrice:  floatPtr(250),
			}
			p.Apply(rec)

			Convey("Then the missing fields are derived", func() {
				So(rec.BillingType, ShouldEqual, schedule.UnitPrice)
				So(*rec.UnitLabel, ShouldEqual, "agent")
				So(*rec.PricePerUnit, ShouldEqual, 25.0)
				So(rec.Issues, ShouldHaveLength, 2)
			})
		})

		Convey("When the per-unit phrase carries the only price", func() {
			rec := &schedule.Record{
				ItemName:    "Platform seats",
				Description: strPtr("$20 per seat per month"),
				BillingType: schedule.UnitPrice,
				Quantity:    floatPtr(10),
			}
			p.Apply(rec)

			Convey("Then price_per_unit is taken from the phrase", func() {
				So(rec.BillingType, ShouldEqual, schedule.UnitPrice)
				So(*rec.UnitLabel, ShouldEqual, "seat")
				So(*rec.PricePerUnit, ShouldEqual, 20.0)
				So(*rec.Quantity, ShouldEqual, 10.0)
				So(rec.Issues, ShouldContain, "Derived price_per_unit 20.00 from per-unit phrasing")
			})
		})

		Convey("When usage wording is present but nothing can be derived", func() {
			rec := &schedule.Record{
				ItemName:    "Overage charges",
				Description: strPtr("Metered usage billed in arrears"),
				BillingType: schedule.UnitPrice,
			}
			p.Apply(rec)

			Convey("Then it is demoted", func() {
				So(rec.BillingType, ShouldEqual, schedule.FlatPrice)
				So(rec.Issues[0], ShouldContainSubstring, "could not both be determined")
			})
		})

		Convey("When a Unit price record comes with tiers", func() {
			rec := &schedule.Record{
				ItemName:    "Leads",
				BillingType: schedule.UnitPrice,
				Tiers:       []schedule.Tier{{Price: floatPtr(5)}},
			}
			p.Apply(rec)

			Convey("Then it is promoted to Tier unit price", func() {
				So(rec.BillingType, ShouldEqual, schedule.TierUnitPrice)
				So(rec.Tiers, ShouldHaveLength, 1)
			})
		})

		Convey("When a tier type has no tiers", func() {
			rec := &schedule.Record{
				ItemName:     "Leads",
				BillingType:  schedule.TierFlatPrice,
				UnitLabel:    strPtr("lead"),
				PricePerUnit: floatPtr(3),
			}
			p.Apply(rec)

			Convey("Then only the billing type is demoted", func() {
				So(rec.BillingType, ShouldEqual, schedule.FlatPrice)
				So(*rec.Quantity, ShouldEqual, 1.0)
				So(*rec.UnitLabel, ShouldEqual, "lead")
				So(rec.Issues[0], ShouldStartWith, "Demoted Tier flat price")
			})
		})

		Convey("When a custom brand list is configured", func() {
			custom := schedule.NewPolicyEngine([]string{"Acme"}, schedule.DefaultUnitNouns, nil)
			rec := &schedule.Record{ItemName: "acme seats", BillingType: schedule.UnitPrice}
			custom.Apply(rec)

			Convey("Then it is matched case-insensitively", func() {
				So(rec.Issues[0], ShouldContainSubstring, `"acme"`)
			})
		})
	})
}

package pipeline_test

import (
	"testing"

	"github.com/okian/revsched/internal/domain/catalog"
	"github.com/okian/revsched/internal/domain/extraction"
	"github.com/okian/revsched/internal/domain/garage"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/internal/domain/schedule"
	. "github.com/smartystreets/goconvey/convey"
)

func mustParse(text string) extraction.Run {
	run, err := extraction.Parse([]byte(text))
	if err != nil {
		panic(err)
	}
	return run
}

func TestPipeline(t *testing.T) {
	Convey("Given a pipeline with default tables", t, func() {
		p := pipeline.New()

		Convey("When two agreeing runs are supplied", func() {
			run1 := mustParse(`{"schedules": [
				{"item_name": "SEO Pro", "billing_type": "Flat price", "total_price": 1000, "start_date": "2025-01-01", "frequency": "monthly", "periods": 12},
				{"item_name": "Setup Fee", "description": "Setup fee: $0 (waived)", "frequency": "one-time", "start_date": "2025-01-01"}
			], "totals_check": {"contract_total_if_any": 12000}}`)
			run2 := mustParse(`{"schedules": [
				{"item_name": "SEO Pro", "billing_type": "Flat price", "total_price": 1005, "start_date": "2025-01-01", "frequency": "monthly", "periods": 12},
				{"item_name": "Setup Fee", "total_price": 0, "frequency": "one-time", "start_date": "2025-01-01"}
			], "issues": ["page 3 unreadable"]}`)
			out := p.Run([]extraction.Run{run1, run2})

			Convey("Then schedules, agreement and Garage records are produced", func() {
				So(out.Schedules, ShouldHaveLength, 2)
				So(out.Agreement, ShouldHaveLength, 2)
				So(out.Agreement[0].Confidence, ShouldBeGreaterThan, 0.9)
				So(out.Agreement[0].FlagForReview, ShouldBeFalse)
				So(out.Summary.Matched, ShouldEqual, 2)
				So(out.Garage, ShouldHaveLength, 2)
				So(out.Garage[0].NumberOfPeriods, ShouldEqual, 12)
				So(*out.Garage[0].IntegrationItem, ShouldEqual, catalog.ItemID("SEO Pro"))
				So(out.Garage[1].FrequencyUnit, ShouldEqual, garage.UnitNone)
				So(out.Garage[1].NumberOfPeriods, ShouldEqual, 1)
				So(out.Garage[1].TotalPrice, ShouldEqual, 0.0)
				So(out.Issues, ShouldContain, "run 2: page 3 unreadable")
				So(out.ShouldRetry, ShouldBeFalse)
				So(out.PolicyVersion, ShouldEqual, pipeline.DefaultPolicyVersion)
			})
		})

		Convey("When a single run is supplied", func() {
			out := p.Run([]extraction.Run{mustParse(`{"schedules": [{"item_name": "Hosting", "total_price": 50, "frequency_unit": "Month(s)"}]}`)})

			Convey("Then no agreement is computed", func() {
				So(out.Agreement, ShouldBeNil)
				So(out.Summary, ShouldBeNil)
				So(out.Garage, ShouldHaveLength, 1)
			})
		})

		Convey("When the contract total disagrees with the schedules", func() {
			out := p.Run([]extraction.Run{mustParse(`{"schedules": [{"item_name": "Hosting", "total_price": 50, "frequency_unit": "Month(s)", "periods": 12}],
				"totals_check": {"contract_total_if_any": 1000}}`)})

			Convey("Then the mismatch is reported", func() {
				So(out.Issues, ShouldContain, "Schedule total 600.00 differs from contract total 1000.00 by 40.0%")
			})
		})

		Convey("When the model output could not be parsed", func() {
			out := p.Run([]extraction.Run{mustParse("no json here")})

			Convey("Then a retry is recommended", func() {
				So(out.Schedules, ShouldBeEmpty)
				So(out.Issues, ShouldContain, extraction.ParseFailureIssue)
				So(out.ShouldRetry, ShouldBeTrue)
			})
		})

		Convey("When no runs are supplied", func() {
			out := p.Run(nil)

			Convey("Then a retry is recommended", func() {
				So(out.ShouldRetry, ShouldBeTrue)
				So(out.Garage, ShouldBeEmpty)
			})
		})

		Convey("When a custom normalizer is configured", func() {
			custom := pipeline.New(
				pipeline.WithNormalizer(schedule.NewNormalizer(schedule.WithBrandTerms("acme"))),
				pipeline.WithPolicyVersion("test"),
			)
			out := custom.Run([]extraction.Run{mustParse(`{"schedules": [{"item_name": "Acme seats", "billing_type": "Unit price", "unit_label": "seat", "price_per_unit": 5, "quantity": 10}]}`)})

			Convey("Then its policy applies", func() {
				So(out.Schedules[0].BillingType, ShouldEqual, schedule.FlatPrice)
				So(out.Garage[0].Quantity, ShouldEqual, 1.0)
				So(out.PolicyVersion, ShouldEqual, "test")
			})
		})
	})
}

package agreement_test

import (
	"testing"

	"github.com/okian/revsched/internal/domain/agreement"
	"github.com/okian/revsched/internal/domain/schedule"
	. "github.com/smartystreets/goconvey/convey"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func record(name string, price float64, start string) schedule.Record {
	return schedule.Record{
		ItemName:       name,
		BillingType:    schedule.FlatPrice,
		TotalPrice:     floatPtr(price),
		StartDate:      strPtr(start),
		FrequencyEvery: 1,
		FrequencyUnit:  schedule.Months,
		Periods:        12,
	}
}

func TestScorer(t *testing.T) {
	Convey("Given a scorer with default thresholds", t, func() {
		s := agreement.New()

		Convey("When both runs agree except for $5 on $1000", func() {
			results, sum := s.Score(
				[]schedule.Record{record("Website Platform", 1000, "2025-01-01")},
				[]schedule.Record{record("Website Platform", 1005, "2025-01-01")},
			)

			Convey("Then confidence is high and nothing is flagged", func() {
				So(results, ShouldHaveLength, 1)
				So(results[0].MatchedIndex, ShouldEqual, 0)
				So(results[0].Confidence, ShouldBeGreaterThan, 0.9)
				So(results[0].FlagForReview, ShouldBeFalse)
				So(sum.Matched, ShouldEqual, 1)
				So(sum.Flagged, ShouldEqual, 0)
			})
		})

		Convey("When both runs agree except for $5 on $1000 and carry no start date", func() {
			a, b := record("Website Platform", 1000, ""), record("Website Platform", 1005, "")
			a.StartDate, b.StartDate = nil, nil
			results, _ := s.Score([]schedule.Record{a}, []schedule.Record{b})

			Convey("Then the missing field lowers completeness but confidence stays above 0.9", func() {
				So(results[0].Completeness, ShouldAlmostEqual, 0.9, 1e-9)
				So(results[0].Confidence, ShouldBeGreaterThan, 0.9)
				So(results[0].FlagForReview, ShouldBeFalse)
			})
		})

		Convey("When run 2 is empty", func() {
			r := record("Hosting", 100, "2025-01-01")
			r.StartDate = nil
			results, sum := s.Score([]schedule.Record{r}, nil)

			Convey("Then the record is unmatched at the confidence floor", func() {
				So(results[0].MatchedIndex, ShouldEqual, -1)
				So(results[0].Similarity, ShouldEqual, 0.0)
				So(results[0].Confidence, ShouldAlmostEqual, 0.2, 1e-9)
				So(results[0].FlagForReview, ShouldBeTrue)
				So(sum.Unmatched, ShouldEqual, 1)
				So(sum.MinConfidence, ShouldAlmostEqual, 0.2, 1e-9)
			})
		})

		Convey("When run 2 lists items in another order", func() {
			run1 := []schedule.Record{
				record("SEO Pro", 500, "2025-01-01"),
				record("Mobile App", 200, "2025-02-01"),
			}
			run2 := []schedule.Record{
				record("Mobile App", 200, "2025-02-01"),
				record("SEO Pro", 500, "2025-01-01"),
				record("Setup Fee", 99, "2025-01-01"),
			}
			results, sum := s.Score(run1, run2)

			Convey("Then each record finds its counterpart and extras are counted", func() {
				So(results[0].MatchedIndex, ShouldEqual, 1)
				So(results[1].MatchedIndex, ShouldEqual, 0)
				So(sum.Extra, ShouldEqual, 1)
				So(sum.MeanConfidence, ShouldAlmostEqual, 1.0, 1e-9)
			})
		})

		Convey("When two candidates tie", func() {
			run1 := []schedule.Record{record("Hosting", 100, "2025-01-01")}
			run2 := []schedule.Record{record("Hosting", 100, "2025-01-01"), record("Hosting", 100, "2025-01-01")}
			results, _ := s.Score(run1, run2)

			Convey("Then the first one wins", func() {
				So(results[0].MatchedIndex, ShouldEqual, 0)
			})
		})

		Convey("When a run-2 record was already consumed", func() {
			run1 := []schedule.Record{record("Hosting", 100, "2025-01-01"), record("Hosting", 100, "2025-01-01")}
			run2 := []schedule.Record{record("Hosting", 100, "2025-01-01")}
			results, sum := s.Score(run1, run2)

			Convey("Then it is not reused", func() {
				So(results[0].MatchedIndex, ShouldEqual, 0)
				So(results[1].MatchedIndex, ShouldEqual, -1)
				So(sum.Unmatched, ShouldEqual, 1)
			})
		})
	})
}

func TestSimilarity(t *testing.T) {
	Convey("Given pairs of records", t, func() {
		a := record("SEO Pro", 1000, "2025-01-01")

		Convey("Then identical records score 1", func() {
			So(agreement.Similarity(a, a), ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("Then dates decay over about a month", func() {
			b := a
			b.StartDate = strPtr("2025-01-31")
			sim := agreement.Similarity(a, b)
			So(sim, ShouldBeLessThan, 1.0)
			So(sim, ShouldBeGreaterThan, 0.9)
		})

		Convey("Then tiers are compared position by position", func() {
			b := a
			a.Tiers = []schedule.Tier{{Name: strPtr("Base"), Price: floatPtr(10), MinQuantity: floatPtr(0)}}
			b.Tiers = []schedule.Tier{{Name: strPtr("Base"), Price: floatPtr(10), MinQuantity: floatPtr(0)}, {Price: floatPtr(5)}}
			sim := agreement.Similarity(a, b)
			So(sim, ShouldAlmostEqual, 1-0.05*0.5, 1e-9)
		})

		Convey("Then scores stay within [0,1] for empty records", func() {
			sim := agreement.Similarity(schedule.Record{}, a)
			So(sim, ShouldBeBetweenOrEqual, 0.0, 1.0)
			So(agreement.Completeness(schedule.Record{}), ShouldEqual, 0.5)
		})
	})
}

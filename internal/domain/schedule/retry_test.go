package schedule_test

import (
	"testing"

	"github.com/okian/revsched/internal/domain/schedule"
	. "github.com/smartystreets/goconvey/convey"
)

func TestShouldRetry(t *testing.T) {
	Convey("Given extraction results", t, func() {
		priced := schedule.Record{ItemName: "SEO Pro", TotalPrice: floatPtr(100)}
		unpriced := schedule.Record{ItemName: "Hosting"}

		Convey("Then an empty result is retried", func() {
			So(schedule.ShouldRetry(nil), ShouldBeTrue)
		})

		Convey("Then a record without a name triggers a retry", func() {
			So(schedule.ShouldRetry([]schedule.Record{priced, {TotalPrice: floatPtr(1)}}), ShouldBeTrue)
		})

		Convey("Then more than half unpriced triggers a retry", func() {
			So(schedule.ShouldRetry([]schedule.Record{priced, unpriced, unpriced}), ShouldBeTrue)
		})

		Convey("Then exactly half unpriced does not", func() {
			So(schedule.ShouldRetry([]schedule.Record{priced, unpriced}), ShouldBeFalse)
		})

		Convey("Then a complete result is accepted", func() {
			So(schedule.ShouldRetry([]schedule.Record{priced, priced}), ShouldBeFalse)
		})
	})
}

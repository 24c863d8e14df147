package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/revsched/internal/config"
	"github.com/okian/revsched/internal/domain/catalog"
	"github.com/okian/revsched/internal/domain/pipeline"
	"github.com/okian/revsched/internal/domain/schedule"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.MaxReviewLimit, convey.ShouldEqual, 100)
			convey.So(cfg.Policy.Version, convey.ShouldEqual, pipeline.DefaultPolicyVersion)
			convey.So(cfg.Policy.BrandTerms, convey.ShouldResemble, schedule.DefaultBrandTerms)
			convey.So(cfg.Catalog.FuzzyThreshold, convey.ShouldEqual, catalog.DefaultThreshold)
			convey.So(cfg.Catalog.Items, convey.ShouldBeEmpty)
			convey.So(cfg.Agreement.MinConfidence, convey.ShouldEqual, 0.75)
			convey.So(cfg.Agreement.MinSimilarity, convey.ShouldEqual, 0.70)
		})

		convey.Convey("Then it should pass validation", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then policy tables should not alias the package defaults", func() {
			cfg.Policy.BrandTerms[0] = "changed"
			convey.So(schedule.DefaultBrandTerms[0], convey.ShouldNotEqual, "changed")
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with an out of range value", t, func() {
		cfg := config.New()
		cfg.Agreement.MinConfidence = 1.5

		convey.Convey("Then validation should fail with ErrInvalidConfig", func() {
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a config with an unknown log level", t, func() {
		cfg := config.New()
		cfg.LogLevel = "verbose"

		convey.Convey("Then validation should fail", func() {
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a config with an empty unit noun", t, func() {
		cfg := config.New()
		cfg.Policy.UnitNouns = []string{"seat", ""}

		convey.Convey("Then validation should fail", func() {
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}

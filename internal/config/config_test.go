package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/flightdelay/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Source, convey.ShouldEqual, config.SourceCSV)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.LateThresholdMinutes, convey.ShouldEqual, 15)
			convey.So(cfg.UnusualWeather, convey.ShouldResemble, []string{"Storm", "Fog", "Snow", "Heavy Rain"})
			convey.So(cfg.RateLimitWindow, convey.ShouldEqual, time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one invalid setting", t, func() {
		cases := map[string]func(*config.Config){
			"addr must not be empty":      func(c *config.Config) { c.Addr = "" },
			"log_format":                  func(c *config.Config) { c.LogFormat = "xml" },
			"queue_size":                  func(c *config.Config) { c.QueueSize = 0 },
			"worker_count":                func(c *config.Config) { c.WorkerCount = -1 },
			"max_records_limit":           func(c *config.Config) { c.MaxRecordsLimit = 0 },
			"max_batch_size":              func(c *config.Config) { c.MaxBatchSize = 0 },
			"late_threshold_minutes":      func(c *config.Config) { c.LateThresholdMinutes = -1 },
			"rate_limit_window":           func(c *config.Config) { c.RateLimitWindow = 0 },
			"unusual_weather":             func(c *config.Config) { c.UnusualWeather = nil },
			"dataset_path":                func(c *config.Config) { c.DatasetPath = "" },
			"postgres_dsn":                func(c *config.Config) { c.Source = config.SourcePostgres },
			`unknown source "bigquery"`:   func(c *config.Config) { c.Source = "bigquery" },
			"snapshot_interval":           func(c *config.Config) { c.SnapshotInterval = -time.Second },
			"rate_limit_requests must not": func(c *config.Config) { c.RateLimitRequests = -1 },
		}

		for want, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, want)
		}
	})

	convey.Convey("Given the memory source", t, func() {
		cfg := config.New()
		cfg.Source = config.SourceMemory
		cfg.DatasetPath = ""

		convey.Convey("Then no dataset is required", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

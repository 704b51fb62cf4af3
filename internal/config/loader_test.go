package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sailorworks/verigrant/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given a clean environment", t, func() {
		os.Unsetenv("VERIGRANT_CONFIG")
		os.Unsetenv("VERIGRANT_ADDR")
		os.Unsetenv("VERIGRANT_QUEUE_SIZE")

		Convey("When loading with no overrides", func() {
			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.SaveDebounceMS, ShouldEqual, 1000)
			So(cfg.AnalysisTTLHours, ShouldEqual, 168)
			So(cfg.MintPollIntervalMS, ShouldEqual, 4000)
		})

		Convey("When an env var overrides a default", func() {
			os.Setenv("VERIGRANT_ADDR", ":7070")
			defer os.Unsetenv("VERIGRANT_ADDR")

			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
		})

		Convey("When a YAML file provides values and env overrides them", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			yaml := "addr: \":6060\"\nworker_count: 3\n"
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			os.Setenv("VERIGRANT_CONFIG", path)
			os.Setenv("VERIGRANT_WORKER_COUNT", "5")
			defer func() {
				os.Unsetenv("VERIGRANT_CONFIG")
				os.Unsetenv("VERIGRANT_WORKER_COUNT")
			}()

			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6060")
			So(cfg.WorkerCount, ShouldEqual, 5)
		})

		Convey("When a value is invalid", func() {
			os.Setenv("VERIGRANT_QUEUE_SIZE", "0")
			defer os.Unsetenv("VERIGRANT_QUEUE_SIZE")

			_, err := config.Load(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "queue_size")
		})
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestServerConfigLoader(t *testing.T) {
	convey.Convey("Given a server config loader", t, func() {
		clearServerEnv(t)

		convey.Convey("When loading with defaults only", func() {
			cfg, err := LoadServerConfig("")

			convey.Convey("Then the defaults are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8090")
				convey.So(cfg.Backend, convey.ShouldEqual, "echarts")
				convey.So(cfg.PageTTL, convey.ShouldEqual, 10*time.Minute)
				convey.So(cfg.QueryCacheSize, convey.ShouldEqual, 256)
				convey.So(cfg.Origins(), convey.ShouldResemble, []string{"*"})
			})
		})

		convey.Convey("When loading from a YAML file", func() {
			path := filepath.Join(t.TempDir(), "server.yaml")
			body := "addr: \":9999\"\ndata_dir: /srv/data\npage_ttl: 30s\ncors_origins: \"http://a.test, http://b.test\"\n"
			convey.So(os.WriteFile(path, []byte(body), 0o644), convey.ShouldBeNil)

			cfg, err := LoadServerConfig(path)

			convey.Convey("Then file values override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9999")
				convey.So(cfg.DataDir, convey.ShouldEqual, "/srv/data")
				convey.So(cfg.PageTTL, convey.ShouldEqual, 30*time.Second)
				convey.So(cfg.Origins(), convey.ShouldResemble, []string{"http://a.test", "http://b.test"})
			})

			convey.Convey("And environment variables override the file", func() {
				t.Setenv("TRACKREVIEW_ADDR", ":7000")
				t.Setenv("TRACKREVIEW_QUERY_CACHE_SIZE", "12")

				cfg, err := LoadServerConfig(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7000")
				convey.So(cfg.QueryCacheSize, convey.ShouldEqual, 12)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/srv/data")
			})
		})

		convey.Convey("When the config is invalid", func() {
			t.Setenv("TRACKREVIEW_BACKEND", "svg")
			_, err := LoadServerConfig("")

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the file is missing", func() {
			_, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func clearServerEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CONFIG", "ADDR", "DATA_DIR", "DB_PATH", "SETTINGS", "FOCUS", "BACKEND",
		"PAGE_CACHE_MB", "PAGE_TTL", "QUERY_CACHE_SIZE", "CORS_ORIGINS"} {
		t.Setenv(EnvPrefix+k, "")
		_ = os.Unsetenv(EnvPrefix + k)
	}
}

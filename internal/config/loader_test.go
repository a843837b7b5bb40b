package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/moodscale/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
				convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.DefaultLocale, convey.ShouldEqual, "fr")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MOODSCALE_ADDR", ":8080")
			_ = os.Setenv("MOODSCALE_QUEUE_SIZE", "500")
			_ = os.Setenv("MOODSCALE_WORKER_COUNT", "4")
			_ = os.Setenv("MOODSCALE_DB_DRIVER", "postgres")
			_ = os.Setenv("MOODSCALE_DB_DSN", "postgres://moodscale@localhost/moodscale")
			_ = os.Setenv("MOODSCALE_DEFAULT_LOCALE", "en")
			_ = os.Setenv("MOODSCALE_CORS_ORIGINS", "https://a.example, https://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.DBDriver, convey.ShouldEqual, "postgres")
				convey.So(cfg.DBDSN, convey.ShouldEqual, "postgres://moodscale@localhost/moodscale")
				convey.So(cfg.DefaultLocale, convey.ShouldEqual, "en")
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
log_format: json
queue_size: 300
worker_count: 3
dedupe_size: 1000
max_history_limit: 25
cors_origins:
  - https://clinic.example
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MOODSCALE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 1000)
				convey.So(cfg.MaxHistoryLimit, convey.ShouldEqual, 25)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://clinic.example"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 300
worker_count: 3
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MOODSCALE_CONFIG", tmpFile)
			_ = os.Setenv("MOODSCALE_ADDR", ":8080")
			_ = os.Setenv("MOODSCALE_WORKER_COUNT", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")      // env
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)     // file
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)     // env
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000) // default
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MOODSCALE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MOODSCALE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("MOODSCALE_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			cfg, err := config.Load(cctx)

			convey.Convey("Then it should refuse to load", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigValidation(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		ctx := context.Background()

		cases := []struct {
			name   string
			key    string
			value  string
			reason string
		}{
			{"empty addr", "MOODSCALE_ADDR", "", "addr must not be empty"},
			{"zero queue size", "MOODSCALE_QUEUE_SIZE", "0", "queue_size must be positive"},
			{"negative worker count", "MOODSCALE_WORKER_COUNT", "-1", "worker_count must be positive"},
			{"zero history limit", "MOODSCALE_MAX_HISTORY_LIMIT", "0", "max_history_limit must be positive"},
			{"unknown driver", "MOODSCALE_DB_DRIVER", "mysql", "unsupported db_driver"},
			{"unknown log format", "MOODSCALE_LOG_FORMAT", "xml", "unsupported log_format"},
		}

		for _, tc := range cases {
			convey.Convey("When loading config with "+tc.name, func() {
				_ = os.Setenv(tc.key, tc.value)
				defer clearConfigEnvVars()

				cfg, err := config.Load(ctx)

				convey.Convey("Then it should return a validation error", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.reason)
					convey.So(cfg, convey.ShouldBeNil)
				})
			})
		}

		convey.Convey("When a YAML file empties the addr", func() {
			tmpFile := createTempConfigFile("addr: \"\"\nworker_count: 2\n")
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MOODSCALE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"MOODSCALE_CONFIG",
		"MOODSCALE_ADDR",
		"MOODSCALE_LOG_FORMAT",
		"MOODSCALE_QUEUE_SIZE",
		"MOODSCALE_WORKER_COUNT",
		"MOODSCALE_DEDUPE_SIZE",
		"MOODSCALE_DB_DRIVER",
		"MOODSCALE_DB_DSN",
		"MOODSCALE_DEFAULT_LOCALE",
		"MOODSCALE_MAX_HISTORY_LIMIT",
		"MOODSCALE_CORS_ORIGINS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "moodscale-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}

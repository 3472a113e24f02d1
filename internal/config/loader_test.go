package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/studyroom/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then the defaults are returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.StudyTags, convey.ShouldResemble, []string{"study"})
			})
		})

		convey.Convey("When loading with environment variables", func() {
			_ = os.Setenv("STUDYROOM_ADDR", ":8080")
			_ = os.Setenv("STUDYROOM_QUEUE_SIZE", "64")
			_ = os.Setenv("STUDYROOM_KV_BACKEND", "memory")
			_ = os.Setenv("STUDYROOM_STUDY_TAGS", "study,exam")
			_ = os.Setenv("STUDYROOM_COUNTDOWN_FRAME_MS", "250")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env values override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.KVBackend, convey.ShouldEqual, config.KVBackendMemory)
				convey.So(cfg.StudyTags, convey.ShouldResemble, []string{"study", "exam"})
				convey.So(cfg.CountdownFrameMS, convey.ShouldEqual, 250)
			})
		})

		convey.Convey("When loading with a YAML file and env", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
db_path: /tmp/rooms.db
worker_count: 3
study_tags: [study, reading]
result_cache_limit: 20
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("STUDYROOM_CONFIG", tmpFile)
			_ = os.Setenv("STUDYROOM_WORKER_COUNT", "5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env wins over the file and the file over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/rooms.db")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 5)
				convey.So(cfg.StudyTags, convey.ShouldResemble, []string{"study", "reading"})
				convey.So(cfg.ResultCacheLimit, convey.ShouldEqual, 20)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("STUDYROOM_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("STUDYROOM_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the redis backend has no url", func() {
			_ = os.Setenv("STUDYROOM_KV_BACKEND", "redis")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"STUDYROOM_CONFIG",
		"STUDYROOM_ADDR",
		"STUDYROOM_QUEUE_SIZE",
		"STUDYROOM_KV_BACKEND",
		"STUDYROOM_STUDY_TAGS",
		"STUDYROOM_COUNTDOWN_FRAME_MS",
		"STUDYROOM_WORKER_COUNT",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "studyroom-config-*.yaml")
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

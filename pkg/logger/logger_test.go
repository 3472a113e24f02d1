package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()
		ctx := context.Background()

		Convey("When logging at info", func() {
			Get().Info(ctx, "ranking built",
				String("session", "room-1"),
				Int("participants", 3),
				Int64("total_ms", 1500000),
				Bool("live", true),
				Duration("took", 12*time.Millisecond),
			)

			Convey("Then the record carries every field and the caller", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "ranking built")
				So(out, ShouldContainSubstring, "session=room-1")
				So(out, ShouldContainSubstring, "participants=3")
				So(out, ShouldContainSubstring, "total_ms=1500000")
				So(out, ShouldContainSubstring, "live=true")
				So(out, ShouldContainSubstring, "logger/logger_test.go:")
			})
		})

		Convey("When debug is below the level", func() {
			Get().Debug(ctx, "hidden")
			So(buf.String(), ShouldNotContainSubstring, "hidden")

			Convey("And the level is lowered", func() {
				So(SetLevelString("DEBUG"), ShouldBeNil)
				Get().Debug(ctx, "visible")
				So(buf.String(), ShouldContainSubstring, "visible")
			})
		})

		Convey("When a named logger logs an error", func() {
			Named("service").Named("presence").Error(ctx, "read failed", Error(errors.New("boom")))
			So(buf.String(), ShouldContainSubstring, "component=service.presence")
			So(buf.String(), ShouldContainSubstring, "error=boom")
		})

		Convey("When the context carries a session", func() {
			Get().Warn(WithSession(ctx, "room-9"), "finalize retried")
			So(buf.String(), ShouldContainSubstring, "session=room-9")
		})

		Convey("When the level string is unknown", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})
	})
}

func TestNopAndNilWriter(t *testing.T) {
	Convey("A nop logger accepts records silently", t, func() {
		l := Nop()
		l.Warn(context.Background(), "ignored", Any("k", 1))
		So(l.Named("x"), ShouldNotBeNil)
	})

	Convey("InitWithWriter rejects a nil writer", t, func() {
		So(InitWithWriter(nil), ShouldNotBeNil)
	})
}

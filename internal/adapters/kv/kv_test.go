package kv_test

import (
	"context"
	"testing"

	"github.com/okian/studyroom/internal/adapters/kv"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemory(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		m := kv.NewMemory()

		Convey("Then absent keys report not found", func() {
			_, ok, err := m.Get(ctx, "missing")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("When a value is set and overwritten", func() {
			So(m.Set(ctx, "k", "v1"), ShouldBeNil)
			So(m.Set(ctx, "k", "v2"), ShouldBeNil)

			Convey("Then the latest value is returned", func() {
				v, ok, err := m.Get(ctx, "k")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "v2")
				So(m.Len(), ShouldEqual, 1)
			})

			Convey("And deleting it twice is harmless", func() {
				So(m.Delete(ctx, "k"), ShouldBeNil)
				So(m.Delete(ctx, "k"), ShouldBeNil)
				So(m.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestRedisConstruction(t *testing.T) {
	Convey("Given a malformed redis url", t, func() {
		_, err := kv.NewRedis(context.Background(), "not a url", "app")

		Convey("Then construction fails before dialing", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "parse redis url")
		})
	})

	Convey("Given a wrapped client", t, func() {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
		r := kv.NewRedisFromClient(client, "app")

		Convey("Then it can be closed", func() {
			So(r.Close(), ShouldBeNil)
		})
	})
}

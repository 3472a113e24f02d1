package simulate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/studyroom/internal/adapters/http/api"
	"github.com/okian/studyroom/internal/adapters/kv"
	"github.com/okian/studyroom/internal/adapters/repository"
	service "github.com/okian/studyroom/internal/app"
	"github.com/okian/studyroom/internal/simulate"
	. "github.com/smartystreets/goconvey/convey"
)

func newStack(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store, err := repository.Open(ctx, filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := service.New(store, kv.NewMemory(), service.WithWorkerCount(2))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(ctx)
		_ = store.Close()
	})
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		srv := newStack(t)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		Convey("When a session is simulated end to end", func() {
			stats, err := simulate.Run(ctx, &simulate.Config{
				BaseURL:      srv.URL,
				Participants: 4,
				Minutes:      1,
				Tag:          "study",
				Hold:         60 * time.Millisecond,
				Churn:        1,
				Workers:      4,
				Timeout:      5 * time.Second,
				PollInterval: 10 * time.Millisecond,
			})

			Convey("Then every participant's result is verified", func() {
				So(err, ShouldBeNil)
				So(stats.SessionID, ShouldNotBeEmpty)
				So(stats.Joins, ShouldEqual, int64(8))
				So(stats.Leaves, ShouldEqual, int64(6))
				So(stats.Failed, ShouldEqual, int64(0))
				So(stats.ResultsStored, ShouldEqual, 4)
				So(stats.Verified, ShouldEqual, 4)
			})
		})
	})

	Convey("Given no service", t, func() {
		_, err := simulate.Run(context.Background(), &simulate.Config{
			BaseURL: "http://127.0.0.1:1", Timeout: time.Second, Participants: 1,
		})
		So(err, ShouldNotBeNil)
	})
}

func TestClientStatusErrors(t *testing.T) {
	Convey("Given an endpoint returning 404", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		c := simulate.NewClient(srv.URL, time.Second)

		err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)
		var se *simulate.StatusError
		So(errors.As(err, &se), ShouldBeTrue)
		So(se.Code, ShouldEqual, http.StatusNotFound)
	})
}

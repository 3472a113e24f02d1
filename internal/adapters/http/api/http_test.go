package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/studyroom/internal/adapters/http/api"
	service "github.com/okian/studyroom/internal/app"
	"github.com/okian/studyroom/internal/domain/countdown"
	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/internal/domain/results"
	"github.com/okian/studyroom/pkg/clock"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeDeps struct {
	mu         sync.Mutex
	sessions   map[string]model.Session
	joined     []string
	lastWindow model.Window
	results    map[string][]model.ResultItem
	finalizeFn func(id string) (bool, error)
	saveErr    error
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{
		sessions: map[string]model.Session{},
		results:  map[string][]model.ResultItem{},
	}
}

func (f *fakeDeps) CreateSession(_ context.Context, doc model.Session) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc.Title == "" {
		return model.Session{}, service.ErrInvalidSession
	}
	if _, ok := f.sessions[doc.ID]; ok {
		return model.Session{}, service.ErrAlreadyExists
	}
	f.sessions[doc.ID] = doc
	return doc, nil
}

func (f *fakeDeps) GetSession(_ context.Context, id string) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.sessions[id]
	if !ok {
		return model.Session{}, service.ErrNotFound
	}
	return doc, nil
}

func (f *fakeDeps) StartSession(ctx context.Context, id string) (model.Session, error) {
	return f.GetSession(ctx, id)
}

func (f *fakeDeps) Join(ctx context.Context, id string, p model.Participant) error {
	if _, err := f.GetSession(ctx, id); err != nil {
		return err
	}
	if p.UID == "" {
		return service.ErrInvalidUID
	}
	f.mu.Lock()
	f.joined = append(f.joined, p.UID)
	f.mu.Unlock()
	return nil
}

func (f *fakeDeps) Leave(_ context.Context, _, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.joined {
		if j == uid {
			return nil
		}
	}
	return service.ErrNoOpenStay
}

func (f *fakeDeps) ForceEnd(ctx context.Context, id string) (model.Session, error) {
	return f.GetSession(ctx, id)
}

func (f *fakeDeps) Ranking(_ context.Context, _ string, w model.Window) ([]model.RankItem, error) {
	f.mu.Lock()
	f.lastWindow = w
	f.mu.Unlock()
	return []model.RankItem{{UID: "u1", TotalMS: 120_000}, {UID: "u2", TotalMS: 60_000}}, nil
}

func (f *fakeDeps) Countdown(ctx context.Context, id string) (countdown.State, error) {
	if _, err := f.GetSession(ctx, id); err != nil {
		return countdown.State{}, err
	}
	return countdown.State{Clock: "05:00", RemainingMS: 300_000}, nil
}

// SubscribeCountdown runs a real timer one minute long whose manual clock
// starts two seconds before the end and moves 500ms after every frame.
func (f *fakeDeps) SubscribeCountdown(ctx context.Context, id string, fn func(countdown.State)) (*countdown.Subscription, error) {
	if _, err := f.GetSession(ctx, id); err != nil {
		return nil, err
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewManual(start.Add(58 * time.Second))
	src := model.SessionTimeSource{Minutes: model.IntPtr(1), SessionStartAt: &start}
	timer := countdown.NewTimer(src, countdown.WithClock(c), countdown.WithFrameInterval(time.Millisecond))
	return timer.Subscribe(ctx, func(st countdown.State) {
		fn(st)
		c.Advance(500 * time.Millisecond)
	}, countdown.StopWhenOver()), nil
}

func (f *fakeDeps) Score(in model.XPInput) int {
	return int(in.FocusMS / model.MillisPerMinute * 10)
}

func (f *fakeDeps) Results(_ context.Context, uid string) ([]model.ResultItem, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, service.ErrInvalidUID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.results[uid]
	if items == nil {
		items = []model.ResultItem{}
	}
	return items, nil
}

func (f *fakeDeps) SaveResult(_ context.Context, uid string, item model.ResultItem) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if item.RoomID == "" {
		return service.ErrInvalidResult
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[uid] = append([]model.ResultItem{item}, f.results[uid]...)
	return nil
}

func (f *fakeDeps) ClearResults(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.results, uid)
	return nil
}

func (f *fakeDeps) RequestFinalize(_ context.Context, id string) (bool, error) {
	return f.finalizeFn(id)
}

func (f *fakeDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestServer(deps *fakeDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func do(srv *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	req, _ := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	resp, err := srv.Client().Do(req)
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("Creating a session returns 201", func() {
			resp, body := do(srv, http.MethodPost, "/sessions", `{"id":"r1","title":"Focus","minutes":25}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			So(body["id"], ShouldEqual, "r1")

			Convey("And creating it again conflicts", func() {
				resp, body := do(srv, http.MethodPost, "/sessions", `{"id":"r1","title":"Focus"}`)
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(body["code"], ShouldEqual, "already_exists")
			})

			Convey("And it can be fetched", func() {
				resp, body := do(srv, http.MethodGet, "/sessions/r1", "")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["title"], ShouldEqual, "Focus")
			})

			Convey("And participants can join and leave", func() {
				resp, body := do(srv, http.MethodPost, "/sessions/r1/join", `{"uid":"u1","display_name":"Ada"}`)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["status"], ShouldEqual, "joined")

				resp, _ = do(srv, http.MethodPost, "/sessions/r1/leave", `{"uid":"u1"}`)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				resp, body = do(srv, http.MethodPost, "/sessions/r1/leave", `{"uid":"ghost"}`)
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
				So(body["code"], ShouldEqual, "no_open_stay")
			})

			Convey("And force-end returns the document", func() {
				resp, _ := do(srv, http.MethodPost, "/sessions/r1/force-end", "")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})

		Convey("Invalid bodies are rejected", func() {
			resp, body := do(srv, http.MethodPost, "/sessions", `{"title":`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(body["code"], ShouldEqual, "bad_request")

			resp, _ = do(srv, http.MethodPost, "/sessions", `{"id":"x","title":"t","bogus":1}`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)

			resp, _ = do(srv, http.MethodPost, "/sessions", `{"id":"x"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown sessions are 404", func() {
			resp, body := do(srv, http.MethodGet, "/sessions/missing", "")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(body["code"], ShouldEqual, "not_found")
		})

		Convey("Wrong methods are rejected by the mux", func() {
			resp, _ := do(srv, http.MethodDelete, "/sessions/r1", "")
			So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestRankingAndScoreRoutes(t *testing.T) {
	Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("Ranking passes the window through", func() {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/sessions/r1/ranking?start_ms=1000&end_ms=5000", nil)
			resp, err := srv.Client().Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var items []model.RankItem
			So(json.NewDecoder(resp.Body).Decode(&items), ShouldBeNil)

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(len(items), ShouldEqual, 2)
			So(items[0].UID, ShouldEqual, "u1")
			So(deps.lastWindow.Start.UnixMilli(), ShouldEqual, int64(1000))
			So(deps.lastWindow.End.UnixMilli(), ShouldEqual, int64(5000))
		})

		Convey("Ranking without bounds uses an open window", func() {
			resp, _ := do(srv, http.MethodGet, "/sessions/r1/ranking", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(deps.lastWindow.HasStart(), ShouldBeFalse)
			So(deps.lastWindow.HasEnd(), ShouldBeFalse)
		})

		Convey("Malformed bounds are 400", func() {
			resp, _ := do(srv, http.MethodGet, "/sessions/r1/ranking?start_ms=soon", "")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Score returns xp", func() {
			resp, body := do(srv, http.MethodPost, "/score", `{"focusMs":1800000,"plannedMs":1800000,"tag":"study"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["xp"], ShouldEqual, float64(300))
		})

		Convey("Negative durations are 400", func() {
			resp, _ := do(srv, http.MethodPost, "/score", `{"focusMs":-1,"plannedMs":0}`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestResultRoutes(t *testing.T) {
	Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("Upserting returns the list and delete clears it", func() {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/users/u1/results",
				strings.NewReader(`{"roomId":"r1","title":"Focus","finalizedAt":10,"durationMin":25}`))
			resp, err := srv.Client().Do(req)
			So(err, ShouldBeNil)
			var items []model.ResultItem
			So(json.NewDecoder(resp.Body).Decode(&items), ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(len(items), ShouldEqual, 1)
			So(items[0].RoomID, ShouldEqual, "r1")

			resp, _ = do(srv, http.MethodDelete, "/users/u1/results", "")
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
			So(deps.results["u1"], ShouldBeEmpty)
		})

		Convey("Items without a room are 400", func() {
			resp, _ := do(srv, http.MethodPost, "/users/u1/results", `{"title":"x"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Storage failures are 503", func() {
			deps.saveErr = results.ErrStorage
			resp, body := do(srv, http.MethodPost, "/users/u1/results", `{"roomId":"r1"}`)
			So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
			So(body["code"], ShouldEqual, "storage_unavailable")
		})
	})
}

func TestFinalizeRoute(t *testing.T) {
	Convey("Given the API over fake dependencies", t, func() {
		deps := newFakeDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		cases := []struct {
			dup    bool
			err    error
			status int
			field  string
			want   any
		}{
			{false, nil, http.StatusAccepted, "status", "accepted"},
			{true, nil, http.StatusOK, "status", "duplicate"},
			{false, service.ErrBackpressure, http.StatusTooManyRequests, "code", "backpressure"},
			{false, service.ErrSessionNotOver, http.StatusConflict, "code", "session_not_over"},
			{false, service.ErrNotStarted, http.StatusServiceUnavailable, "code", "unavailable"},
		}
		for _, tc := range cases {
			tc := tc
			deps.finalizeFn = func(string) (bool, error) { return tc.dup, tc.err }
			resp, body := do(srv, http.MethodPost, "/sessions/r1/finalize", "")
			So(resp.StatusCode, ShouldEqual, tc.status)
			So(body[tc.field], ShouldEqual, tc.want)
		}
	})
}

func TestCountdownRoutes(t *testing.T) {
	Convey("Given a session", t, func() {
		deps := newFakeDeps()
		deps.sessions["r1"] = model.Session{ID: "r1", Title: "Focus"}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("The one-shot countdown returns the state", func() {
			resp, body := do(srv, http.MethodGet, "/sessions/r1/countdown", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["clock"], ShouldEqual, "05:00")
		})

		Convey("The stream writes only clock or over changes and ends when over", func() {
			resp, err := srv.Client().Get(srv.URL + "/sessions/r1/countdown/stream")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")

			var clocks []string
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				if !strings.HasPrefix(line, "data: ") {
					continue
				}
				var st countdown.State
				So(json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &st), ShouldBeNil)
				clocks = append(clocks, st.Clock)
			}
			So(clocks, ShouldResemble, []string{"00:02", "00:01", "00:00", "00:00"})
		})

		Convey("Streams of unknown sessions are 404", func() {
			resp, _ := do(srv, http.MethodGet, "/sessions/nope/countdown/stream", "")
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the API", t, func() {
		srv := newTestServer(newFakeDeps())
		defer srv.Close()

		Convey("Healthz serves the metrics exposition", func() {
			resp, err := srv.Client().Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})

		Convey("Stats are JSON", func() {
			resp, body := do(srv, http.MethodGet, "/stats", "")
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(body["started"], ShouldEqual, true)
			So(body, ShouldContainKey, "uptimeMs")
			So(body["goroutines"], ShouldBeGreaterThan, float64(0))
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a wrapped handler that writes 409 twice", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			w.WriteHeader(http.StatusOK)
		}, "test_conflict")
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/x", http.NoBody))

		Convey("The first status reaches the client", func() {
			So(w.Code, ShouldEqual, http.StatusConflict)
		})
	})

	Convey("Given a wrapped handler using a ResponseController", t, func() {
		var flushErr error
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("x"))
			flushErr = http.NewResponseController(w).Flush()
		}, "test_flush")
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

		Convey("Flush reaches the underlying writer", func() {
			So(flushErr, ShouldBeNil)
			So(w.Flushed, ShouldBeTrue)
		})
	})
}

package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/studyroom/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSessionTimeSource(t *testing.T) {
	Convey("Given a 25 minute session", t, func() {
		now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
		start := now.Add(-10 * time.Minute)
		created := now.Add(-20 * time.Minute)
		src := model.SessionTimeSource{Minutes: model.IntPtr(25), SessionStartAt: &start, CreatedAt: &created}

		Convey("Then the start resolves to sessionStartAt first", func() {
			So(src.ResolveStart(now), ShouldEqual, start)
		})

		Convey("Then createdAt is used without sessionStartAt", func() {
			src.SessionStartAt = nil
			So(src.ResolveStart(now), ShouldEqual, created)
		})

		Convey("Then now is used without either", func() {
			src.SessionStartAt, src.CreatedAt = nil, nil
			So(src.ResolveStart(now), ShouldEqual, now)
		})

		Convey("When force-ended before the planned end", func() {
			forced := start.Add(5 * time.Minute)
			src.SessionForceEndedAt = &forced
			So(src.EffectiveEnd(start), ShouldEqual, forced)
		})

		Convey("When force-ended after the planned end", func() {
			late := start.Add(40 * time.Minute)
			src.SessionForceEndedAt = &late
			So(src.EffectiveEnd(start), ShouldEqual, start.Add(25*time.Minute))
		})

		Convey("Then negative or absent minutes count as zero", func() {
			src.Minutes = model.IntPtr(-3)
			So(src.TotalMS(), ShouldEqual, 0)
			src.Minutes = nil
			So(src.TotalMS(), ShouldEqual, 0)
		})

		Convey("Then an enormous length never ends before it starts", func() {
			src.Minutes = model.IntPtr(200_000_000)
			src.SessionForceEndedAt = nil
			So(src.PlannedEnd(start).After(start), ShouldBeTrue)
			So(src.TotalMS(), ShouldBeGreaterThan, int64(0))
		})
	})
}

func TestSessionWindow(t *testing.T) {
	Convey("Given a force-ended session", t, func() {
		start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		forced := start.Add(12 * time.Minute)
		s := &model.Session{
			ID:             "room-1",
			Minutes:        model.IntPtr(30),
			SessionStartAt: &start,
			ForceEndedAt:   &forced,
			Participants:   []model.Participant{{UID: "a"}, {UID: "b", DisplayName: model.StringPtr("Bee")}},
		}

		Convey("Then its window spans start to the force-end", func() {
			w := s.Window(start.Add(time.Hour))
			So(w.Start, ShouldEqual, start)
			So(w.End, ShouldEqual, forced)
			So(s.PlannedMS(), ShouldEqual, 30*model.MillisPerMinute)
		})

		Convey("Then participants are found by uid", func() {
			p, ok := s.Participant("b")
			So(ok, ShouldBeTrue)
			So(*p.DisplayName, ShouldEqual, "Bee")
			_, ok = s.Participant("z")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("WindowFromMillis leaves absent sides unbounded", t, func() {
		start := int64(1_700_000_000_000)
		w := model.WindowFromMillis(&start, nil)
		So(w.HasStart(), ShouldBeTrue)
		So(w.HasEnd(), ShouldBeFalse)
		So(w.Start.UnixMilli(), ShouldEqual, start)
	})
}

func TestResultItemRoundTrip(t *testing.T) {
	Convey("Given a sequence of result items", t, func() {
		items := []model.ResultItem{
			{RoomID: "r2", Title: "Evening", FinalizedAt: 1_700_000_100_000, DurationMin: 50, Rank: model.IntPtr(1), XP: model.IntPtr(600), Coins: model.IntPtr(60)},
			{RoomID: "r1", Title: "Morning", FinalizedAt: 1_700_000_000_000, DurationMin: 25},
		}

		Convey("When serialized and deserialized", func() {
			raw, err := json.Marshal(items)
			So(err, ShouldBeNil)
			var back []model.ResultItem
			So(json.Unmarshal(raw, &back), ShouldBeNil)

			Convey("Then order and values are preserved", func() {
				So(back, ShouldResemble, items)
			})

			Convey("Then absent optionals are omitted", func() {
				So(string(raw), ShouldNotContainSubstring, `"rank":null`)
			})
		})
	})

	Convey("A rank item keeps a null display name", t, func() {
		raw, err := json.Marshal(model.RankItem{UID: "u", TotalMS: 5})
		So(err, ShouldBeNil)
		So(string(raw), ShouldEqual, `{"uid":"u","displayName":null,"totalMs":5}`)
	})
}

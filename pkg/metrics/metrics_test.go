package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test_ns"),
				WithSubsystem("test_sub"),
				WithMetricPrefix("pfx"),
				WithLatencyBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithRegisterer(registry),
			)

			Convey("Then its metrics are registered under the configured names", func() {
				So(manager, ShouldNotBeNil)
				manager.rankingsBuilt.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_ns_test_sub_pfx_rankings_built_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When a ranking is recorded", func() {
			before := testutil.ToFloat64(globalManager.participantsRanked)
			RecordRanking(3, 4.5)
			So(testutil.ToFloat64(globalManager.participantsRanked), ShouldEqual, before+3)
		})

		Convey("When scores are recorded", func() {
			before := testutil.ToFloat64(globalManager.xpAwarded)
			RecordScore(330)
			RecordScore(0)
			So(testutil.ToFloat64(globalManager.xpAwarded), ShouldEqual, before+330)
		})

		Convey("When countdown subscriptions come and go", func() {
			before := testutil.ToFloat64(globalManager.countdownSubscriptions)
			CountdownSubscribed()
			CountdownSubscribed()
			CountdownUnsubscribed()
			So(testutil.ToFloat64(globalManager.countdownSubscriptions), ShouldEqual, before+1)
			CountdownUnsubscribed()
		})

		Convey("When a cache write evicts items", func() {
			before := testutil.ToFloat64(globalManager.resultCacheEvictions)
			RecordResultCacheWrite(2)
			So(testutil.ToFloat64(globalManager.resultCacheEvictions), ShouldEqual, before+2)
		})

		Convey("Then the remaining recorders do not panic", func() {
			So(func() {
				RecordParticipantReadFailure()
				RecordCountdownTick()
				RecordResultCacheCorrupt()
				RecordFinalizeProcessed(12)
				RecordFinalizeFailed()
				RecordFinalizeDuplicate()
				UpdateQueueSize(3)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordRepositoryQueryLatency("list_stays", 1.2)
				RecordHTTPRequest("ranking", "GET", "200")
				RecordHTTPRequestDuration("ranking", "GET", "200", 3)
				RecordErrorByComponent("presence", "read_failed")
				RecordErrorByType("read_failed", "medium")
				RecordErrorByEndpoint("ranking", "GET", "server_error")
				RecordErrorLatency("http", "server_error", 10)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("Then the registry exposes the service namespace", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "studyroom_engine_"), ShouldBeTrue)
			}
		})
	})
}

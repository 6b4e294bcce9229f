package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a manager on an isolated registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(registry),
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithConstLabels(map[string]string{"env": "test"}),
		)

		Convey("When the pipeline records a flow", func() {
			m.RecordMessageReceived()
			m.RecordMessageReceived()
			m.RecordMessageValidated()
			m.RecordMessageRejected()
			m.RecordMessageEnriched()
			m.RecordSignal("BUY")
			m.RecordComputationError("division_by_zero")
			m.RecordFactorScore(0.6)
			m.RecordProcessingLatency(0.2)
			m.RecordStreamRecord("enriched")

			Convey("Then the counters reflect it", func() {
				So(testutil.ToFloat64(m.messagesReceived), ShouldEqual, 2)
				So(testutil.ToFloat64(m.messagesValidated), ShouldEqual, 1)
				So(testutil.ToFloat64(m.messagesRejected), ShouldEqual, 1)
				So(testutil.ToFloat64(m.messagesEnriched), ShouldEqual, 1)
				So(testutil.ToFloat64(m.signals.WithLabelValues("BUY")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.computationErrors.WithLabelValues("division_by_zero")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.streamRecords.WithLabelValues("enriched")), ShouldEqual, 1)
			})

			Convey("And families carry the namespace and constant labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				fam := findFamily(families, "test_unit_messages_received_total")
				So(fam, ShouldNotBeNil)
				labels := fam.GetMetric()[0].GetLabel()
				So(labels, ShouldHaveLength, 1)
				So(labels[0].GetName(), ShouldEqual, "env")
				So(labels[0].GetValue(), ShouldEqual, "test")

				hist := findFamily(families, "test_unit_factor_score")
				So(hist, ShouldNotBeNil)
				So(hist.GetMetric()[0].GetHistogram().GetSampleCount(), ShouldEqual, 1)
			})
		})
	})
}

func TestCustomBuckets(t *testing.T) {
	Convey("Given custom buckets", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(registry),
			WithLatencyBuckets([]float64{1, 2}),
			WithScoreBuckets([]float64{0.2}),
			WithLatencyBuckets(nil),
		)
		m.RecordProcessingLatency(1.5)
		m.RecordFactorScore(0.1)

		families, err := registry.Gather()
		So(err, ShouldBeNil)

		lat := findFamily(families, "factor_pipeline_processing_latency_milliseconds")
		So(lat, ShouldNotBeNil)
		So(lat.GetMetric()[0].GetHistogram().GetBucket(), ShouldHaveLength, 2)

		score := findFamily(families, "factor_pipeline_factor_score")
		So(score, ShouldNotBeNil)
		buckets := score.GetMetric()[0].GetHistogram().GetBucket()
		So(buckets, ShouldHaveLength, 1)
		So(buckets[0].GetCumulativeCount(), ShouldEqual, 1)
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given a registry with samples", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))
		m.RecordSignal("HOLD")

		Convey("When written to a textfile", func() {
			path := filepath.Join(t.TempDir(), "factor.prom")
			err := writeTextfile(registry, path)

			Convey("Then the file holds the exposition text", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `factor_pipeline_signals_total{signal="HOLD"} 1`)
			})
		})

		Convey("When the path is empty", func() {
			err := writeTextfile(registry, "")

			Convey("Then ErrWriteFailed is returned", func() {
				So(errors.Is(err, ErrWriteFailed), ShouldBeTrue)
			})
		})

		Convey("When the directory does not exist", func() {
			err := writeTextfile(registry, filepath.Join(t.TempDir(), "missing", "x.prom"))

			Convey("Then ErrWriteFailed is returned", func() {
				So(errors.Is(err, ErrWriteFailed), ShouldBeTrue)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("The package-level recorders write to the custom registry", t, func() {
		before := testutil.ToFloat64(globalManager.messagesEnriched)
		RecordMessageEnriched()
		So(testutil.ToFloat64(globalManager.messagesEnriched), ShouldEqual, before+1)
		So(GetRegistry(), ShouldEqual, customRegistry)
	})
}

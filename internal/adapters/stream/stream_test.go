package stream_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/factor/internal/adapters/stream"
	service "github.com/okian/factor/internal/app"
	"github.com/okian/factor/internal/domain/model"
	"github.com/okian/factor/internal/domain/types"
	"github.com/okian/factor/internal/samples"
	"github.com/okian/factor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func newService(t *testing.T) *service.Service {
	t.Helper()
	svc, err := service.New(service.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRunner_Run(t *testing.T) {
	Convey("Given a runner over the default service", t, func() {
		ctx := context.Background()
		rec := logger.NewRecorder()
		runner := stream.NewRunner(newService(t), stream.WithConcurrency(4), stream.WithLogger(rec))

		input := strings.Join([]string{
			`{"symbol":"AAPL","pe_ratio":2,"roe":0.1}`,
			``,
			`[1,2,3]`,
			`{"pe_ratio":2}`,
			`{"symbol":"MSFT","pe_ratio":0}`,
			`not json`,
			`{"symbol":"KO","source":"feed-a"}`,
		}, "\n")

		var out, rejects bytes.Buffer
		summary, err := runner.Run(ctx, strings.NewReader(input), &out, &rejects)

		Convey("Then the run completes and counts every non-blank line", func() {
			So(err, ShouldBeNil)
			So(summary, ShouldResemble, types.Summary{Read: 6, Enriched: 2, Rejected: 4})
			So(summary.Dropped(), ShouldEqual, 4)
		})

		Convey("And enriched messages keep input order and original keys", func() {
			enriched := decodeLines(t, out.String())
			So(enriched, ShouldHaveLength, 2)
			So(enriched[0]["symbol"], ShouldEqual, "AAPL")
			So(enriched[0]["factor_score"], ShouldEqual, 0.6)
			So(enriched[0]["factor_signal"], ShouldEqual, "BUY")
			So(enriched[1]["symbol"], ShouldEqual, "KO")
			So(enriched[1]["source"], ShouldEqual, "feed-a")
			So(enriched[1]["factor_score"], ShouldEqual, 0.1867)
			So(enriched[1]["factor_signal"], ShouldEqual, "HOLD")
		})

		Convey("And each rejection names its line and kind", func() {
			var got []types.Rejection
			for _, m := range decodeLines(t, rejects.String()) {
				got = append(got, types.Rejection{
					Line: int(m["line"].(float64)),
					Kind: m["kind"].(string),
				})
			}
			want := []types.Rejection{
				{Line: 3, Kind: types.KindInvalidFormat},
				{Line: 4, Kind: types.KindInvalidFormat},
				{Line: 5, Kind: types.KindMathError},
				{Line: 6, Kind: types.KindInvalidFormat},
			}
			So(cmp.Diff(want, got), ShouldBeEmpty)
		})

		Convey("And a summary record is logged", func() {
			entries := rec.ByLevel("info")
			So(entries, ShouldNotBeEmpty)
			last := entries[len(entries)-1]
			So(last.Message, ShouldEqual, "stream finished")
			enriched, ok := last.Field("enriched")
			So(ok, ShouldBeTrue)
			So(enriched, ShouldEqual, 2)
		})
	})
}

func TestRunner_OrderUnderConcurrency(t *testing.T) {
	Convey("Given many lines and a wide window", t, func() {
		var in strings.Builder
		for i := 0; i < 500; i++ {
			fmt.Fprintf(&in, "{\"symbol\":\"S\",\"pe_ratio\":%d}\n", i+1)
		}

		var out, rejects bytes.Buffer
		runner := stream.NewRunner(newService(t), stream.WithConcurrency(16), stream.WithLogger(logger.Nop()))
		summary, err := runner.Run(context.Background(), strings.NewReader(in.String()), &out, &rejects)

		Convey("Then outputs follow input order", func() {
			So(err, ShouldBeNil)
			So(summary.Enriched, ShouldEqual, 500)
			So(rejects.Len(), ShouldEqual, 0)
			for i, m := range decodeLines(t, out.String()) {
				So(m["pe_ratio"], ShouldEqual, float64(i+1))
			}
		})
	})
}

func TestRunner_Failures(t *testing.T) {
	Convey("Given a processor that fails unexpectedly", t, func() {
		boom := errors.New("boom")
		proc := stream.ProcessorFunc(func(_ context.Context, raw model.RawMessage) (model.EnrichedMessage, error) {
			if raw["fail"] == true {
				return nil, boom
			}
			return model.Merge(raw, nil), nil
		})
		runner := stream.NewRunner(proc, stream.WithLogger(logger.Nop()))

		var out, rejects bytes.Buffer
		summary, err := runner.Run(context.Background(), strings.NewReader("{\"fail\":true}\n{\"ok\":1}\n"), &out, &rejects)

		Convey("Then the line is counted as failed and the run continues", func() {
			So(err, ShouldBeNil)
			So(summary, ShouldResemble, types.Summary{Read: 2, Enriched: 1, Failed: 1})
			rej := decodeLines(t, rejects.String())
			So(rej, ShouldHaveLength, 1)
			So(rej[0]["kind"], ShouldEqual, types.KindInternal)
			So(rej[0]["error"], ShouldEqual, "boom")
		})
	})

	Convey("Given a line longer than the limit", t, func() {
		runner := stream.NewRunner(newService(t), stream.WithMaxLineBytes(16), stream.WithLogger(logger.Nop()))
		var out, rejects bytes.Buffer
		_, err := runner.Run(context.Background(), strings.NewReader(`{"symbol":"AAPL","pe_ratio":2}`), &out, &rejects)

		Convey("Then the run stops with a read error", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		runner := stream.NewRunner(newService(t), stream.WithLogger(logger.Nop()))
		var out, rejects bytes.Buffer
		_, err := runner.Run(ctx, strings.NewReader(`{"symbol":"AAPL"}`), &out, &rejects)

		Convey("Then the run returns the context error", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(out.Len(), ShouldEqual, 0)
		})
	})
}

func TestRunner_GeneratedSamples(t *testing.T) {
	Convey("Given generated samples with known outcomes", t, func() {
		gen, err := samples.Generate(context.Background(), samples.Config{Count: 400, MalformedRatio: 0.25, Seed: 42})
		So(err, ShouldBeNil)

		var in bytes.Buffer
		So(samples.WriteJSONL(&in, gen), ShouldBeNil)

		var out, rejects bytes.Buffer
		runner := stream.NewRunner(newService(t), stream.WithConcurrency(8), stream.WithLogger(logger.Nop()))
		summary, err := runner.Run(context.Background(), &in, &out, &rejects)

		Convey("Then every sample ends where its tag says", func() {
			So(err, ShouldBeNil)
			So(summary.Read, ShouldEqual, len(gen))
			So(summary.Failed, ShouldEqual, 0)

			wantEnriched := 0
			for _, s := range gen {
				if s.Expect == samples.ExpectEnriched {
					wantEnriched++
				}
			}
			So(summary.Enriched, ShouldEqual, wantEnriched)

			for _, m := range decodeLines(t, rejects.String()) {
				line := int(m["line"].(float64))
				So(m["kind"], ShouldEqual, gen[line-1].Expect)
			}
		})
	})
}

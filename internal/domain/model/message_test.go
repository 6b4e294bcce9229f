package model_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/factor/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestMerge(t *testing.T) {
	convey.Convey("Given a base message and an overlay", t, func() {
		base := model.RawMessage{"symbol": "ABC", "factor_score": "stale", "extra": []any{1.0}}
		overlay := map[string]any{"factor_score": 0.1867, "factor_signal": "HOLD"}

		convey.Convey("When merged", func() {
			out := model.Merge(base, overlay)

			convey.Convey("Then the overlay wins on collision and the rest is kept", func() {
				want := model.EnrichedMessage{
					"symbol":        "ABC",
					"factor_score":  0.1867,
					"factor_signal": "HOLD",
					"extra":         []any{1.0},
				}
				convey.So(cmp.Diff(want, out), convey.ShouldBeEmpty)
			})

			convey.Convey("And the base is untouched", func() {
				convey.So(base["factor_score"], convey.ShouldEqual, "stale")
				convey.So(base, convey.ShouldNotContainKey, "factor_signal")
			})

			convey.Convey("And the accessors read the derived fields", func() {
				score, ok := out.Score()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(score, convey.ShouldEqual, 0.1867)
				convey.So(out.Signal(), convey.ShouldEqual, "HOLD")
				convey.So(out.Symbol(), convey.ShouldEqual, "ABC")
			})
		})

		convey.Convey("When the base is nil", func() {
			out := model.Merge(nil, overlay)
			convey.So(out, convey.ShouldHaveLength, 2)
		})
	})
}

func TestClone(t *testing.T) {
	convey.Convey("Given a message", t, func() {
		m := model.RawMessage{"symbol": "ABC", "pe_ratio": 12.0}
		c := m.Clone()
		c["symbol"] = "XYZ"

		convey.So(m["symbol"], convey.ShouldEqual, "ABC")
		convey.So(c.Keys(), convey.ShouldEqual, 2)
		convey.So(model.RawMessage(nil).Clone(), convey.ShouldBeNil)

		v, ok := m.Get("pe_ratio")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(v, convey.ShouldEqual, 12.0)
		_, ok = m.Get("roe")
		convey.So(ok, convey.ShouldBeFalse)
	})
}

func TestDecode(t *testing.T) {
	convey.Convey("Given JSON documents", t, func() {
		convey.Convey("When the document is an object", func() {
			m, err := model.Decode([]byte(` {"symbol":"ABC","pe_ratio":2,"roe":"0.1","meta":{"src":"feed"}} `))

			convey.Convey("Then numbers decode as float64 and nesting is kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(m["pe_ratio"], convey.ShouldEqual, 2.0)
				convey.So(m["roe"], convey.ShouldEqual, "0.1")
				convey.So(m["meta"], convey.ShouldResemble, map[string]any{"src": "feed"})
			})
		})

		convey.Convey("When the document is not an object", func() {
			for _, doc := range []string{"", "[]", "42", `"x"`, "null", "{broken"} {
				_, err := model.Decode([]byte(doc))
				convey.So(errors.Is(err, model.ErrNotObject), convey.ShouldBeTrue)
			}
		})
	})
}

package features

import (
	"math"
	"testing"

	"NiftyEdge/internal/domain/models"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDeriveDegenerateCPR(t *testing.T) {
	f := Derive(models.Bar{Open: 92, High: 100, Low: 90, Close: 95})
	if !near(f.PP, 95) || !near(f.TC, 95) || !near(f.BC, 95) {
		t.Fatalf("unexpected cpr pp=%v tc=%v bc=%v", f.PP, f.TC, f.BC)
	}
	if !near(f.PrevRange, 10) || !near(f.Body, 3) {
		t.Fatalf("unexpected range=%v body=%v", f.PrevRange, f.Body)
	}
	if f.BodyPct == nil || !near(*f.BodyPct, 0.3) {
		t.Fatalf("unexpected body pct %v", f.BodyPct)
	}
	if !near(*f.UpperPct, 0.5) || !near(*f.LowerPct, 0.2) {
		t.Fatalf("unexpected wicks upper=%v lower=%v", *f.UpperPct, *f.LowerPct)
	}
	if !near(*f.WickImbalance, 0.3) || !near(*f.TopRejection, 0.5) || !near(*f.BottomRejection, 0.5) {
		t.Fatalf("unexpected ratios")
	}
}

func TestComputeCPRSwap(t *testing.T) {
	cases := []struct{ h, l, c float64 }{
		{100, 90, 99},
		{100, 90, 91},
		{100, 90, 90},
		{100, 100, 100},
		{5, 1, 4.2},
	}
	for _, tc := range cases {
		_, top, bottom := ComputeCPR(tc.h, tc.l, tc.c)
		if top < bottom {
			t.Fatalf("tc < bc for %+v: %v < %v", tc, top, bottom)
		}
	}
	_, top, bottom := ComputeCPR(100, 90, 91)
	if !near(top, 95) || !near(bottom, 92.33333333333333) {
		t.Fatalf("expected swapped levels, got tc=%v bc=%v", top, bottom)
	}
}

func TestDeriveZeroRange(t *testing.T) {
	f := Derive(models.Bar{Open: 100, High: 100, Low: 100, Close: 100})
	if f.BodyPct != nil || f.UpperPct != nil || f.LowerPct != nil ||
		f.WickImbalance != nil || f.TopRejection != nil || f.BottomRejection != nil {
		t.Fatalf("expected undefined ratios on zero range")
	}
	if !f.HasPrev {
		t.Fatalf("expected HasPrev")
	}
}

func TestDeriveSeries(t *testing.T) {
	bars := []models.Bar{
		{Open: 10, High: 12, Low: 9, Close: 11},
		{Open: 11, High: 13, Low: 10, Close: 12},
		{Open: 12, High: 12, Low: 12, Close: 12},
	}
	fs := DeriveSeries(bars)
	if fs[0].HasPrev {
		t.Fatalf("first row must have no predecessor")
	}
	if fs[1].PDH != 12 || fs[2].PDH != 13 {
		t.Fatalf("unexpected pdh %v %v", fs[1].PDH, fs[2].PDH)
	}
	body := BodyPctSeries(fs)
	if !math.IsNaN(body[0]) || math.IsNaN(body[1]) {
		t.Fatalf("unexpected body series %v", body)
	}
}

func TestDeriveLiveMatchesDerive(t *testing.T) {
	in := models.LiveInput{PrevOpen: 22000, PrevHigh: 22150, PrevLow: 21900, PrevClose: 22100, TodayOpen: 22200}
	got := DeriveLive(in)
	want := Derive(models.Bar{Open: 22000, High: 22150, Low: 21900, Close: 22100})
	if got.TC != want.TC || got.BC != want.BC || *got.BodyPct != *want.BodyPct {
		t.Fatalf("live features differ from batch features")
	}
}

package level

import (
	"math"
	"testing"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		aqi  float64
		want Level
	}{
		{100, Good},
		{51, Good},
		{50.01, Good},
		{50, Moderate},
		{0, Moderate},
		{-0.01, Low},
		{-100, Low},
		{-100.01, VeryLow},
		{-400, VeryLow},
	}
	for _, c := range cases {
		if got := Classify(c.aqi); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.aqi, got, c.want)
		}
	}
}

func TestClassifyMonotonic(t *testing.T) {
	prev := Classify(-500)
	for aqi := -500.0; aqi <= 150; aqi += 0.25 {
		got := Classify(aqi)
		if got.WorseThan(prev) {
			t.Fatalf("Classify(%v) = %v is worse than the level of a lower AQI (%v)", aqi, got, prev)
		}
		prev = got
	}
}

func TestClassifyBenzene(t *testing.T) {
	cases := []struct {
		ppb  float64
		want BenzeneLevel
	}{
		{0, BenzeneNone},
		{0.99, BenzeneNone},
		{1.0, BenzeneElevated},
		{1.54, BenzeneElevated},
		{1.55, BenzeneHigh},
		{2.09, BenzeneHigh},
		{2.10, BenzeneVeryHigh},
		{2.63, BenzeneVeryHigh},
		{2.64, BenzeneDangerous},
		{10, BenzeneDangerous},
	}
	for _, c := range cases {
		if got := ClassifyBenzene(c.ppb); got != c.want {
			t.Errorf("ClassifyBenzene(%v) = %v, want %v", c.ppb, got, c.want)
		}
	}
	prev := ClassifyBenzene(0)
	for ppb := 0.0; ppb < 5; ppb += 0.01 {
		got := ClassifyBenzene(ppb)
		if got < prev {
			t.Fatalf("ClassifyBenzene(%v) = %v is better than %v", ppb, got, prev)
		}
		prev = got
	}
}

func TestEligible(t *testing.T) {
	if !Moderate.Eligible(Moderate) || !Low.Eligible(Moderate) || !VeryLow.Eligible(Moderate) {
		t.Fatal("moderate threshold must accept moderate and worse")
	}
	if Good.Eligible(Moderate) {
		t.Fatal("moderate threshold must reject good")
	}
	if Low.Eligible(VeryLow) {
		t.Fatal("very low threshold must reject low")
	}
}

func TestOverall(t *testing.T) {
	if got := Overall(Good, BenzeneNone); got != Good {
		t.Fatalf("got %v, want GOOD", got)
	}
	if got := Overall(Moderate, BenzeneVeryHigh); got != VeryLow {
		t.Fatalf("got %v, want VERY_LOW", got)
	}
	if got := Overall(Low, BenzeneElevated); got != Low {
		t.Fatalf("got %v, want LOW", got)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, l := range All {
		parsed, err := Parse(l.String())
		if err != nil || parsed != l {
			t.Fatalf("Parse(%q) = %v, %v", l.String(), parsed, err)
		}
	}
	if _, err := Parse("TERRIBLE"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSubIndexBandEdge(t *testing.T) {
	idx, ok := SubIndex(PM25, 37.2)
	if !ok {
		t.Fatal("expected PM2.5 to be evaluated")
	}
	if math.Abs(idx-99.21) > 0.01 {
		t.Fatalf("got %v, want ~99.21", idx)
	}
	idx, _ = SubIndex(PM25, 500)
	if idx != 500 {
		t.Fatalf("above the last band got %v, want 500", idx)
	}
}

func TestComputeAQI(t *testing.T) {
	aqi, ok := ComputeAQI(map[Pollutant]float64{PM25: 37.2})
	if !ok || aqi != 1 {
		t.Fatalf("got %v, %v, want 1", aqi, ok)
	}
	if Classify(aqi) != Moderate {
		t.Fatalf("PM2.5=37.2 must be MODERATE, got %v", Classify(aqi))
	}

	aqi, ok = ComputeAQI(map[Pollutant]float64{PM25: 5, NO2: 150})
	if !ok {
		t.Fatal("expected an AQI")
	}
	no2, _ := SubIndex(NO2, 150)
	if aqi != math.Round(100-no2) {
		t.Fatalf("worst pollutant must determine AQI, got %v", aqi)
	}

	if _, ok := ComputeAQI(map[Pollutant]float64{PM25: -1, "TEMP": 20}); ok {
		t.Fatal("negative and unknown values must not be evaluated")
	}
	if _, ok := ComputeAQI(nil); ok {
		t.Fatal("empty input must not be evaluated")
	}
}

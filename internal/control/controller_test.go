package control

import (
	"testing"

	"modwatch/pkg/types"
)

func TestDecide_TightenTable(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name       string
		avgDelay   float64
		inactivity float64
		multiplier float64
		wantDelta  int
	}{
		{"burst", 80, 500, 1.0, 20},
		{"fast", 200, 2000, 1.0, 10},
		{"busy", 400, 4000, 1.0, 6},
		{"moderate", 600, 6000, 1.0, 4},
		{"steady", 900, 9000, 1.0, 2},
		{"slow", 1200, 9000, 1.0, 1},
		{"slowest tighten", 1400, 9000, 1.0, 0},
		{"boundary 500 exact is inclusive", 500, 4000, 1.0, 6},
		{"just above 500 falls through", 500.1, 4000, 1.0, 4},
		{"boundary 100 exact", 100, 900, 1.0, 20},
		{"boundary 1500 exact", 1500, 9000, 1.0, 0},
		{"inactivity boundary 1000 exact", 90, 1000, 1.0, 20},
		{"inactivity above ceiling falls through", 90, 1001, 1.0, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := rules.Decide(tc.avgDelay, tc.inactivity, tc.multiplier)
			if got != tc.wantDelta {
				t.Errorf("Decide(%v, %v, %v) = %d, want %d",
					tc.avgDelay, tc.inactivity, tc.multiplier, got, tc.wantDelta)
			}
		})
	}
}

func TestDecide_SensitivityScalesTightenThresholds(t *testing.T) {
	rules := DefaultRules()

	// At offset +10 the multiplier is 1.5, so a 600ms delay still clears
	// the 500ms threshold (500*1.5=750).
	if got := rules.Decide(600, 4000, Multiplier(10)); got != 6 {
		t.Errorf("expected widened threshold to yield +6, got %+d", got)
	}
	// At offset -10 the multiplier is 0.5 and the same delay only reaches
	// the 1250ms band (1250*0.5=625).
	if got := rules.Decide(600, 9000, Multiplier(-10)); got != 1 {
		t.Errorf("expected narrowed threshold to yield +1, got %+d", got)
	}
	// Relax bands are not scaled: once the tighten table no longer applies,
	// the same inactivity band fires regardless of offset.
	if got := rules.Decide(1800, 15000, Multiplier(10)); got != -1 {
		t.Errorf("expected unscaled relax band to yield -1, got %+d", got)
	}
}

func TestDecide_RelaxBands(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name       string
		avgDelay   float64
		inactivity float64
		wantDelta  int
	}{
		{"calm via inactivity band one", 50, 15000, -1},
		{"calm via delay band one", 1800, 5000, -1},
		{"calm via inactivity band two", 50, 45000, -2},
		{"calm via delay band two", 2300, 5000, -2},
		{"dead channel by delay", 3000, 5000, -4},
		{"inactivity 10000 exact stays in tighten range", 1400, 10000, 0},
		{"inactivity just above 10000 relaxes", 1600, 10001, -1},
		{"inactivity 30000 exact is band one", 1600, 30000, -1},
		{"inactivity 60000 exact is band two", 1600, 60000, -2},
		{"delay 2000 exact is band one", 2000, 5000, -1},
		{"delay 2500 exact is band two", 2500, 5000, -2},
		{"delay just above 2500", 2500.1, 5000, -4},
		{"no rule matches", 1000, 70000, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := rules.Decide(tc.avgDelay, tc.inactivity, 1.0)
			if got != tc.wantDelta {
				t.Errorf("Decide(%v, %v, 1.0) = %d, want %d",
					tc.avgDelay, tc.inactivity, got, tc.wantDelta)
			}
		})
	}
}

func TestMultiplier(t *testing.T) {
	for _, tc := range []struct {
		offset int
		want   float64
	}{
		{0, 1.0},
		{10, 1.5},
		{-10, 0.5},
		{4, 1.2},
	} {
		if got := Multiplier(tc.offset); got != tc.want {
			t.Errorf("Multiplier(%d) = %v, want %v", tc.offset, got, tc.want)
		}
	}
}

func TestClamp_ForceFloor(t *testing.T) {
	if got := Clamp(120, ForceFloor, 5, 300, types.PlatformMaxSlowmode); got != 5 {
		t.Errorf("force-to-floor should yield min, got %d", got)
	}
	// Idempotent: repeated application keeps the floor.
	got := 120
	for i := 0; i < 3; i++ {
		got = Clamp(got, ForceFloor, 5, 300, types.PlatformMaxSlowmode)
	}
	if got != 5 {
		t.Errorf("repeated force-to-floor should stay at min, got %d", got)
	}
}

func TestClamp_Bounds(t *testing.T) {
	tests := []struct {
		name                     string
		current, delta, min, max int
		want                     int
	}{
		{"simple raise", 0, 20, 0, 120, 20},
		{"capped at max", 110, 20, 0, 120, 120},
		{"lowered to min", 3, -10, 2, 120, 2},
		{"no ceiling uses platform cap", 21590, 100, 0, 0, types.PlatformMaxSlowmode},
		{"within bounds negative delta", 30, -4, 0, 120, 26},
		{"zero delta", 30, 0, 0, 120, 30},
		{"raise from floor", 2, 6, 2, 120, 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Clamp(tc.current, tc.delta, tc.min, tc.max, types.PlatformMaxSlowmode)
			if got != tc.want {
				t.Errorf("Clamp(%d, %d, %d, %d) = %d, want %d",
					tc.current, tc.delta, tc.min, tc.max, got, tc.want)
			}
		})
	}
}

func TestClamp_AlwaysWithinBounds(t *testing.T) {
	// Output must land in [min, max] when max > 0, otherwise in
	// [min, platformMax].
	for current := 0; current <= 200; current += 25 {
		for _, delta := range []int{-50, -4, -1, 0, 1, 6, 20, 500} {
			for _, bounds := range []struct{ min, max int }{
				{0, 0}, {0, 120}, {10, 10}, {5, 60},
			} {
				got := Clamp(current, delta, bounds.min, bounds.max, types.PlatformMaxSlowmode)
				ceiling := bounds.max
				if ceiling == 0 {
					ceiling = types.PlatformMaxSlowmode
				}
				if got < bounds.min || got > ceiling {
					t.Fatalf("Clamp(%d, %d, %d, %d) = %d escaped [%d, %d]",
						current, delta, bounds.min, bounds.max, got, bounds.min, ceiling)
				}
			}
		}
	}
}

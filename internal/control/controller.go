// Package control holds the slowmode decision math: a threshold table that
// maps observed message cadence to a slowmode delta, and the clamp that
// keeps applied values inside a channel's configured bounds.
package control

import "math"

// ForceFloor is the distinguished delta that forces a channel back to its
// configured minimum, used after prolonged inactivity.
const ForceFloor = math.MinInt32

// TightenRule raises (or holds) slowmode when traffic is fast enough.
// A rule matches when the average delay is at or below MaxDelay scaled by
// the tenant's sensitivity multiplier AND the inactivity is at or below
// MaxInactivity. Both values are milliseconds.
type TightenRule struct {
	MaxDelay      float64
	MaxInactivity float64
	Delta         int
}

// RelaxRule lowers slowmode when traffic has calmed. A rule matches when
// the inactivity falls in (MinInactivity, MaxInactivity] OR the average
// delay falls in (MinDelay, MaxDelay]; a zero Max means unbounded, a band
// with both bounds zero is disabled. Relax bands are not sensitivity
// scaled.
type RelaxRule struct {
	MinInactivity float64
	MaxInactivity float64
	MinDelay      float64
	MaxDelay      float64
	Delta         int
}

// Rules is the ordered decision table. Tighten rules are evaluated most
// restrictive first; the first match wins. Relax rules are tried only when
// no tighten rule matched.
type Rules struct {
	Tighten []TightenRule
	Relax   []RelaxRule
}

// DefaultRules returns the reference decision table. Boundaries live here
// as data so deployments can tune them without touching the evaluator.
func DefaultRules() Rules {
	return Rules{
		Tighten: []TightenRule{
			{MaxDelay: 100, MaxInactivity: 1000, Delta: 20},
			{MaxDelay: 250, MaxInactivity: 2500, Delta: 10},
			{MaxDelay: 500, MaxInactivity: 5000, Delta: 6},
			{MaxDelay: 750, MaxInactivity: 8000, Delta: 4},
			{MaxDelay: 1000, MaxInactivity: 10000, Delta: 2},
			{MaxDelay: 1250, MaxInactivity: 10000, Delta: 1},
			{MaxDelay: 1500, MaxInactivity: 10000, Delta: 0},
		},
		Relax: []RelaxRule{
			{MinInactivity: 10000, MaxInactivity: 30000, MinDelay: 1500, MaxDelay: 2000, Delta: -1},
			{MinInactivity: 30000, MaxInactivity: 60000, MinDelay: 2000, MaxDelay: 2500, Delta: -2},
			{MinDelay: 2500, Delta: -4},
		},
	}
}

// Multiplier converts the stored sensitivity offset into the threshold
// multiplier. Offsets are validated at the command boundary.
func Multiplier(offset int) float64 {
	return 1 + float64(offset)/20
}

// Decide returns the slowmode delta for the observed cadence, or 0 when no
// rule matches. avgDelayMs and inactivityMs are milliseconds; multiplier
// scales the tighten thresholds only.
func (r Rules) Decide(avgDelayMs, inactivityMs, multiplier float64) int {
	for _, rule := range r.Tighten {
		if avgDelayMs <= rule.MaxDelay*multiplier && inactivityMs <= rule.MaxInactivity {
			return rule.Delta
		}
	}
	for _, rule := range r.Relax {
		if rule.matchInactivity(inactivityMs) || rule.matchDelay(avgDelayMs) {
			return rule.Delta
		}
	}
	return 0
}

func (r RelaxRule) matchInactivity(v float64) bool {
	if r.MinInactivity == 0 && r.MaxInactivity == 0 {
		return false
	}
	return v > r.MinInactivity && (r.MaxInactivity == 0 || v <= r.MaxInactivity)
}

func (r RelaxRule) matchDelay(v float64) bool {
	if r.MinDelay == 0 && r.MaxDelay == 0 {
		return false
	}
	return v > r.MinDelay && (r.MaxDelay == 0 || v <= r.MaxDelay)
}

// Clamp applies delta to current and bounds the result. ForceFloor pins the
// result to min. A max of 0 means the channel has no explicit ceiling and
// only the platform cap applies. The caller is responsible for recording a
// floor-to-above-floor transition (the manipulated counter).
func Clamp(current, delta, min, max, platformMax int) int {
	if delta == ForceFloor {
		return min
	}
	proposed := current + delta
	if max > 0 && proposed > max {
		return max
	}
	if proposed > platformMax {
		return platformMax
	}
	if proposed < min {
		return min
	}
	return proposed
}

package domain

import "github.com/jonboulle/clockwork"

// clock stamps ComputedAt on score records. Package-level so tests can freeze
// time via SetClock; production code uses the real clock.
var clock = clockwork.NewRealClock()

// SetClock swaps the scoring time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

package controls

// Test pattern state is a plain integer: 0 is live sensor output, 1..3 are
// the sensor's built-in patterns.
const (
	PatternLive = 0
	PatternMax  = 3
)

// nextPattern advances the cycle. Cycling visits 1, 2, 3, 1, ... and never
// lands back on live; only an explicit live request returns to 0.
func nextPattern(current int) int {
	next := (current + 1) % (PatternMax + 1)
	if next == PatternLive {
		next = 1
	}
	return next
}

// validPattern reports whether v is a value the sensor accepts.
func validPattern(v int) bool {
	return v >= PatternLive && v <= PatternMax
}

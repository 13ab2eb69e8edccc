// Package clock sanity-checks the system clock against NTP. Recordings
// carry wall-clock names and timestamps, and capture boxes in the field
// often boot without a battery-backed RTC.
package clock

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

const (
	DefaultServer = "pool.ntp.org"

	// DefaultTolerance is generous on purpose: this is a "your clock is
	// wrong" warning, not time synchronization.
	DefaultTolerance = 2 * time.Second
)

// Offset queries an NTP server and returns how far the local clock is from
// it. Positive means the local clock is behind.
func Offset(server string) (time.Duration, error) {
	resp, err := ntp.Query(server)
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("response from %s: %w", server, err)
	}
	return resp.ClockOffset, nil
}

// Skewed reports whether an offset magnitude exceeds the tolerance.
func Skewed(offset, tolerance time.Duration) bool {
	if offset < 0 {
		offset = -offset
	}
	return offset > tolerance
}

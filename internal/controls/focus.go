package controls

import "github.com/smazurov/viewfinder/pkg/linuxav/v4l2"

// FocusMode is one state of the focus sub-machine.
type FocusMode uint8

const (
	FocusIdle FocusMode = iota
	FocusAuto
	FocusSingleShot
	FocusPaused
)

func (m FocusMode) String() string {
	switch m {
	case FocusIdle:
		return "idle"
	case FocusAuto:
		return "auto"
	case FocusSingleShot:
		return "single-shot"
	case FocusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// ParseFocusMode maps the API's mode names onto requested states.
func ParseFocusMode(s string) (FocusMode, bool) {
	switch s {
	case "auto":
		return FocusAuto, true
	case "single":
		return FocusSingleShot, true
	case "pause":
		return FocusPaused, true
	default:
		return FocusIdle, false
	}
}

// controlWrite is one pending sub-device control write.
type controlWrite struct {
	name  string
	id    uint32
	value int32
}

var (
	writeAutoOn  = controlWrite{name: "focus_auto", id: v4l2.CIDFocusAuto, value: 1}
	writeAutoOff = controlWrite{name: "focus_auto", id: v4l2.CIDFocusAuto, value: 0}
	writeTrigger = controlWrite{name: "auto_focus_start", id: v4l2.CIDAutoFocusStart, value: 1}
	writeLock    = controlWrite{name: "3a_lock", id: v4l2.CID3ALock, value: v4l2.LockFocus}
)

// focusTransition resolves one (current, requested) pair. Pairs outside the
// transition table leave the state alone and issue no write; a corrupt
// current state resets to FocusIdle, also without a write.
func focusTransition(current, requested FocusMode) (next FocusMode, write controlWrite, issue bool) {
	switch current {
	case FocusIdle:
		switch requested {
		case FocusAuto:
			return FocusAuto, writeAutoOn, true
		case FocusSingleShot:
			return FocusSingleShot, writeTrigger, true
		}
	case FocusAuto:
		switch requested {
		case FocusAuto:
			// Requesting auto while auto is the toggle off.
			return FocusIdle, writeAutoOff, true
		case FocusSingleShot:
			return FocusSingleShot, writeTrigger, true
		case FocusPaused:
			return FocusPaused, writeLock, true
		}
	case FocusSingleShot:
		switch requested {
		case FocusAuto:
			return FocusAuto, writeAutoOn, true
		case FocusSingleShot:
			return FocusSingleShot, writeTrigger, true
		case FocusPaused:
			return FocusPaused, writeLock, true
		}
	case FocusPaused:
		switch requested {
		case FocusAuto:
			return FocusAuto, writeAutoOn, true
		case FocusSingleShot:
			return FocusSingleShot, writeTrigger, true
		}
	default:
		return FocusIdle, controlWrite{}, false
	}
	return current, controlWrite{}, false
}

// Package playback provides the line-by-line narration state machine.
package playback

// State represents the playback state.
type State int

const (
	StateIdle     State = iota // Nothing narrated (initial, stopped or failed)
	StateSpeaking              // A line is being spoken
	StateWaiting               // Counting down before the next line
	StatePaused                // Speaking or waiting was paused
	StateFinished              // The last line was spoken
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StateWaiting:
		return "waiting"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// IsActive returns true while a narration is in progress.
func (s State) IsActive() bool {
	return s == StateSpeaking || s == StateWaiting || s == StatePaused
}

// AcceptsText returns true if the source text may be replaced in this state.
func (s State) AcceptsText() bool {
	return s == StateIdle || s == StateFinished
}

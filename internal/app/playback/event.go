package playback

import "github.com/osa030/narrator/internal/domain/lines"

// EventType represents a playback event type.
type EventType int

const (
	EventStateChanged EventType = iota // Playback state changed
	EventLineStarted                   // Utterance submitted or confirmed for the line at the cursor
	EventCountdown                     // Countdown decreased during a delay
	EventEngineError                   // Speech engine failed, narration reset
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventLineStarted:
		return "line_started"
	case EventCountdown:
		return "countdown"
	case EventEngineError:
		return "engine_error"
	default:
		return "unknown"
	}
}

// Snapshot is the observable playback state.
type Snapshot struct {
	State      State
	Cursor     int            // Line spoken or about to be spoken
	Countdown  int            // Seconds left in the current delay
	PausedFrom State          // StateSpeaking or StateWaiting while paused, StateIdle otherwise
	Lines      lines.Sequence // Narrated lines; empty when idle
}

// CurrentLine returns the line at the cursor.
func (s Snapshot) CurrentLine() (string, bool) {
	return s.Lines.At(s.Cursor)
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	Err      error // Set for EventEngineError
}

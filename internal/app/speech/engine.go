// Package speech provides text-to-speech engines used to narrate lines.
package speech

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrUnsupported  = errors.New("operation not supported by engine")
	ErrNotAvailable = errors.New("engine not available")
	ErrClosed       = errors.New("engine closed")
)

// Utterance is a request to vocalize one line.
type Utterance struct {
	ID    string // Unique per submission
	Index int    // Line index in the narrated sequence
	Text  string
}

// NewUtterance creates an utterance with a fresh ID.
func NewUtterance(index int, text string) Utterance {
	return Utterance{
		ID:    uuid.New().String(),
		Index: index,
		Text:  text,
	}
}

// NotificationKind represents the kind of engine notification.
type NotificationKind int

const (
	NotificationStarted NotificationKind = iota // Audio started
	NotificationEnded                           // Utterance finished normally
	NotificationFailed                          // Utterance failed
)

// String returns the string representation of the notification kind.
func (k NotificationKind) String() string {
	switch k {
	case NotificationStarted:
		return "started"
	case NotificationEnded:
		return "ended"
	case NotificationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Notification is delivered asynchronously by an engine for a submitted utterance.
type Notification struct {
	Kind        NotificationKind
	UtteranceID string
	Index       int
	Err         error // Set for NotificationFailed
}

// NotifyFunc receives engine notifications. It may be called from any goroutine.
type NotifyFunc func(Notification)

// Engine is the speech capability used by the player.
//
// At most one utterance is outstanding. Each submitted utterance yields at
// most one Started followed by exactly one Ended or Failed notification,
// unless Cancel supersedes it, after which nothing is delivered for it.
type Engine interface {
	// Name returns the engine type name.
	Name() string
	// Speak submits an utterance. Notifications must not be delivered from
	// within Speak itself.
	Speak(u Utterance, notify NotifyFunc) error
	// Pause suspends audio of the outstanding utterance.
	Pause() error
	// Resume continues a paused utterance.
	Resume() error
	// Cancel drops the outstanding utterance. Safe to call when idle.
	Cancel() error
	// Close releases resources.
	Close() error
}

func started(u Utterance) Notification {
	return Notification{Kind: NotificationStarted, UtteranceID: u.ID, Index: u.Index}
}

func ended(u Utterance) Notification {
	return Notification{Kind: NotificationEnded, UtteranceID: u.ID, Index: u.Index}
}

func failed(u Utterance, err error) Notification {
	return Notification{Kind: NotificationFailed, UtteranceID: u.ID, Index: u.Index, Err: err}
}

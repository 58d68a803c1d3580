package speech

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	zlog "github.com/rs/zerolog/log"
)

const defaultMinDuration = 300 * time.Millisecond

// SimulatedSettings represents settings for the simulated engine.
type SimulatedSettings struct {
	WordsPerMinute int  `yaml:"words_per_minute" mapstructure:"words_per_minute" default:"160" validate:"gte=20,lte=1000"`
	Quiet          bool `yaml:"quiet" mapstructure:"quiet"`
}

// SimulatedEngine produces no audio. It prints each line and reports the end
// of the utterance after the time a reader would need for it.
type SimulatedEngine struct {
	wpm         int
	minDuration time.Duration
	out         io.Writer

	mu        sync.Mutex
	current   *Utterance
	notify    NotifyFunc
	timer     *time.Timer
	remaining time.Duration
	resumedAt time.Time
	paused    bool
	closed    bool
}

// NewSimulatedEngine creates a simulated engine. A nil out disables printing.
func NewSimulatedEngine(wordsPerMinute int, out io.Writer) *SimulatedEngine {
	return &SimulatedEngine{
		wpm:         wordsPerMinute,
		minDuration: defaultMinDuration,
		out:         out,
	}
}

// Name returns the engine type name.
func (e *SimulatedEngine) Name() string {
	return "simulated"
}

// Duration returns how long the engine takes to speak text.
func (e *SimulatedEngine) Duration(text string) time.Duration {
	words := len(strings.Fields(text))
	d := time.Duration(words) * time.Minute / time.Duration(e.wpm)
	if d < e.minDuration {
		return e.minDuration
	}
	return d
}

// Speak starts a simulated utterance.
func (e *SimulatedEngine) Speak(u Utterance, notify NotifyFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.cancelLocked()

	e.current = &u
	e.notify = notify
	e.remaining = e.Duration(u.Text)
	e.resumedAt = time.Now()
	e.paused = false
	e.timer = time.AfterFunc(e.remaining, func() { e.finish(u.ID) })

	if e.out != nil {
		color.New(color.FgYellow).Fprintf(e.out, "🔊 %s\n", u.Text)
	}
	zlog.Debug().Msgf("speech: simulated utterance: index=%d duration=%v", u.Index, e.remaining)

	go e.deliver(u.ID, started(u))
	return nil
}

func (e *SimulatedEngine) deliver(id string, n Notification) {
	e.mu.Lock()
	if e.current == nil || e.current.ID != id {
		e.mu.Unlock()
		return
	}
	notify := e.notify
	e.mu.Unlock()

	notify(n)
}

func (e *SimulatedEngine) finish(id string) {
	e.mu.Lock()
	if e.current == nil || e.current.ID != id || e.paused {
		e.mu.Unlock()
		return
	}
	u := *e.current
	notify := e.notify
	e.current = nil
	e.notify = nil
	e.timer = nil
	e.mu.Unlock()

	notify(ended(u))
}

// Pause freezes the remaining speaking time.
func (e *SimulatedEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pauseLocked()
	return nil
}

func (e *SimulatedEngine) pauseLocked() {
	if e.current == nil || e.paused {
		return
	}
	if e.timer != nil {
		if e.timer.Stop() {
			e.remaining = max(e.remaining-time.Since(e.resumedAt), 0)
		} else {
			// Already fired, finish is blocked on mu and will see paused
			e.remaining = 0
		}
	}
	e.paused = true
}

// Resume restarts the end timer with the remaining time.
func (e *SimulatedEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || !e.paused {
		return nil
	}
	id := e.current.ID
	e.paused = false
	e.resumedAt = time.Now()
	e.timer = time.AfterFunc(e.remaining, func() { e.finish(id) })
	return nil
}

// Cancel drops the outstanding utterance.
func (e *SimulatedEngine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	return nil
}

// Close cancels any outstanding utterance and rejects further ones.
func (e *SimulatedEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.cancelLocked()
	return nil
}

func (e *SimulatedEngine) cancelLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = nil
	e.current = nil
	e.notify = nil
	e.paused = false
}

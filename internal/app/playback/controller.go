package playback

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/app/speech"
	"github.com/osa030/narrator/internal/domain/lines"
)

// Errors
var (
	ErrClosed     = errors.New("playback controller closed")
	ErrTextLocked = errors.New("text cannot change while narrating")
)

// Config holds controller configuration.
type Config struct {
	Clock       Clock // Defaults to WallClock
	EventBuffer int   // Size of the event channel buffer
}

// Controller narrates text one line at a time with a countdown pause
// between lines.
//
// Commands, timer callbacks and engine notifications all run on a single
// control loop, each to completion, so the fields below the loop marker are
// never touched from any other goroutine. Commands return once the loop has
// handled them. Commands that do not apply to the current state are no-ops.
type Controller struct {
	engine speech.Engine
	loop   *loop

	eventCh   chan Event
	closeOnce sync.Once

	// Owned by the loop
	text       string
	lines      lines.Sequence
	state      State
	cursor     int
	pausedFrom State
	pendingEnd bool // Utterance ended while paused from speaking
	utterance  *speech.Utterance
	submitted  time.Time
	delay      *delayTimer
}

// NewController creates a playback controller that owns engine.
func NewController(engine speech.Engine, config Config) *Controller {
	if config.Clock == nil {
		config.Clock = WallClock()
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}

	c := &Controller{
		engine:     engine,
		loop:       newLoop(),
		eventCh:    make(chan Event, config.EventBuffer),
		state:      StateIdle,
		pausedFrom: StateIdle,
	}
	c.delay = newDelayTimer(config.Clock, c.loop.post, c.onCountdown, c.onDelayExpired)
	return c
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// SetText replaces the source text. It is only accepted while idle or finished.
func (c *Controller) SetText(text string) error {
	var err error
	if callErr := c.call(func() {
		if !c.state.AcceptsText() {
			err = ErrTextLocked
			return
		}
		c.text = text
	}); callErr != nil {
		return callErr
	}
	return err
}

// Play starts narration from the first line when idle or finished, and
// resumes when paused.
func (c *Controller) Play() error {
	return c.call(c.play)
}

// Pause pauses speaking or waiting.
func (c *Controller) Pause() error {
	return c.call(c.pause)
}

// Resume continues a paused narration.
func (c *Controller) Resume() error {
	return c.call(c.resume)
}

// Toggle plays, pauses or resumes depending on the current state.
func (c *Controller) Toggle() error {
	return c.call(func() {
		switch c.state {
		case StateIdle, StateFinished:
			c.play()
		case StateSpeaking, StateWaiting:
			c.pause()
		case StatePaused:
			c.resume()
		}
	})
}

// Stop cancels narration and returns to idle.
func (c *Controller) Stop() error {
	return c.call(c.stop)
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	if err := c.call(func() { s = c.snapshot() }); err != nil {
		return Snapshot{State: StateIdle, Countdown: DelaySeconds, PausedFrom: StateIdle}
	}
	return s
}

// Close cancels timers and any in-flight utterance, stops the control loop
// and closes the event channel.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		_ = c.call(func() {
			c.reset()
			if err := c.engine.Close(); err != nil {
				zlog.Warn().Msgf("playback: failed to close engine: %v", err)
			}
		})
		c.loop.stop()
		close(c.eventCh)
	})
}

// call runs fn on the loop and waits for it.
func (c *Controller) call(fn func()) error {
	done := make(chan struct{})
	if !c.loop.post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	<-done
	return nil
}

func (c *Controller) play() {
	switch c.state {
	case StatePaused:
		c.resume()
		return
	case StateIdle, StateFinished:
	default:
		zlog.Debug().Msgf("playback: play ignored: state=%s", c.state)
		return
	}

	seq := lines.Split(c.text)
	if seq.IsEmpty() {
		zlog.Debug().Msg("playback: play ignored: nothing to narrate")
		return
	}

	c.lines = seq
	c.cursor = 0
	c.pausedFrom = StateIdle
	c.pendingEnd = false

	zlog.Info().Msgf("playback: narration started: lines=%d", seq.Len())
	c.submitLine()
}

func (c *Controller) pause() {
	switch c.state {
	case StateSpeaking:
		c.delay.Cancel()
		if err := c.engine.Pause(); err != nil {
			zlog.Warn().Msgf("playback: engine pause failed, audio may continue: %v", err)
		}
		c.pausedFrom = StateSpeaking
	case StateWaiting:
		c.delay.Cancel()
		c.pausedFrom = StateWaiting
	default:
		zlog.Debug().Msgf("playback: pause ignored: state=%s", c.state)
		return
	}

	c.setState(StatePaused)
}

func (c *Controller) resume() {
	if c.state != StatePaused {
		zlog.Debug().Msgf("playback: resume ignored: state=%s", c.state)
		return
	}

	from := c.pausedFrom
	c.pausedFrom = StateIdle

	switch from {
	case StateWaiting:
		// The delay restarts in full rather than continuing the partial countdown
		c.startDelay()
	case StateSpeaking:
		c.setState(StateSpeaking)
		if c.pendingEnd {
			c.pendingEnd = false
			c.lineFinished()
			return
		}
		if err := c.engine.Resume(); err != nil {
			c.fail(errors.Wrap(err, "failed to resume engine"))
		}
	}
}

func (c *Controller) stop() {
	if c.state == StateIdle {
		zlog.Debug().Msg("playback: stop ignored: already idle")
		return
	}
	zlog.Info().Msgf("playback: narration stopped: state=%s cursor=%d", c.state, c.cursor)
	c.reset()
}

// reset cancels timers and the outstanding utterance and returns to idle.
func (c *Controller) reset() {
	c.delay.Reset()

	if c.utterance != nil {
		utterancesTotal.WithLabelValues("cancelled").Inc()
		c.utterance = nil
	}
	if err := c.engine.Cancel(); err != nil {
		zlog.Warn().Msgf("playback: failed to cancel utterance: %v", err)
	}

	c.lines = nil
	c.cursor = 0
	c.pausedFrom = StateIdle
	c.pendingEnd = false
	c.setState(StateIdle)
}

// fail collapses the narration to idle after an engine failure.
func (c *Controller) fail(err error) {
	zlog.Error().Msgf("playback: speech engine failed at line %d: %v", c.cursor, err)
	utterancesTotal.WithLabelValues("failed").Inc()
	c.utterance = nil
	c.reset()
	c.sendEvent(EventEngineError, err)
}

// submitLine speaks the line at the cursor. A blank line counts as finished
// immediately without involving the engine.
func (c *Controller) submitLine() {
	text, _ := c.lines.At(c.cursor)
	if text == "" {
		c.lineFinished()
		return
	}

	c.delay.Reset()
	c.setState(StateSpeaking)

	u := speech.NewUtterance(c.cursor, text)
	c.utterance = &u
	c.submitted = time.Now()
	utterancesTotal.WithLabelValues("submitted").Inc()

	zlog.Debug().Msgf("playback: speaking line: index=%d/%d", c.cursor+1, c.lines.Len())
	c.sendEvent(EventLineStarted, nil)

	if err := c.engine.Speak(u, c.onNotification); err != nil {
		c.fail(errors.Wrapf(err, "failed to speak line %d", c.cursor))
	}
}

// lineFinished waits before the next line, or finishes after the last one.
func (c *Controller) lineFinished() {
	c.utterance = nil

	if c.lines.HasNext(c.cursor) {
		c.startDelay()
		return
	}

	c.delay.Reset()
	zlog.Info().Msgf("playback: narration finished: lines=%d", c.lines.Len())
	c.setState(StateFinished)
}

func (c *Controller) startDelay() {
	c.delay.Start()
	delayCyclesTotal.Inc()
	c.setState(StateWaiting)
	c.sendEvent(EventCountdown, nil)
}

// onNotification is called by the engine from any goroutine.
func (c *Controller) onNotification(n speech.Notification) {
	c.loop.post(func() { c.handleNotification(n) })
}

func (c *Controller) handleNotification(n speech.Notification) {
	if c.utterance == nil || c.utterance.ID != n.UtteranceID {
		zlog.Debug().Msgf("playback: stale %s notification dropped: index=%d", n.Kind, n.Index)
		return
	}

	switch n.Kind {
	case speech.NotificationStarted:
		if c.cursor != n.Index {
			c.cursor = n.Index
			c.sendEvent(EventLineStarted, nil)
		}

	case speech.NotificationEnded:
		utterancesTotal.WithLabelValues("completed").Inc()
		utteranceDurationSeconds.Observe(time.Since(c.submitted).Seconds())

		switch c.state {
		case StateSpeaking:
			c.lineFinished()
		case StatePaused:
			c.utterance = nil
			c.pendingEnd = true
		}

	case speech.NotificationFailed:
		err := n.Err
		if err == nil {
			err = errors.New("speech engine reported an error")
		}
		c.fail(err)
	}
}

func (c *Controller) onCountdown(countdown int) {
	if c.state != StateWaiting {
		return
	}
	c.sendEvent(EventCountdown, nil)
}

func (c *Controller) onDelayExpired() {
	if c.state != StateWaiting {
		return
	}
	c.cursor++
	c.submitLine()
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	zlog.Debug().Msgf("playback: state %s -> %s", c.state, s)
	c.state = s
	stateTransitionsTotal.WithLabelValues(s.String()).Inc()
	c.sendEvent(EventStateChanged, nil)
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		State:      c.state,
		Cursor:     c.cursor,
		Countdown:  c.delay.Countdown(),
		PausedFrom: c.pausedFrom,
		Lines:      c.lines.Clone(),
	}
}

// sendEvent sends an event without blocking.
func (c *Controller) sendEvent(t EventType, err error) {
	select {
	case c.eventCh <- Event{Type: t, Snapshot: c.snapshot(), Err: err}:
	default:
		// Channel full, drop event; observers can poll Snapshot
	}
}

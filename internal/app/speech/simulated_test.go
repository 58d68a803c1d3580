package speech

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSimulated speaks fast enough that every test line ends at the
// minimum duration.
func newTestSimulated(out *bytes.Buffer) *SimulatedEngine {
	e := NewSimulatedEngine(6000, nil)
	if out != nil {
		e.out = out
	}
	e.minDuration = 20 * time.Millisecond
	return e
}

func TestSimulatedEngine_Duration(t *testing.T) {
	tests := []struct {
		name     string
		wpm      int
		text     string
		expected time.Duration
	}{
		{name: "floor for short text", wpm: 600, text: "hi", expected: defaultMinDuration},
		{name: "floor for empty text", wpm: 60, text: "", expected: defaultMinDuration},
		{name: "one word per second", wpm: 60, text: "one two three", expected: 3 * time.Second},
		{name: "extra whitespace ignored", wpm: 60, text: "  one   two  ", expected: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewSimulatedEngine(tt.wpm, nil)
			assert.Equal(t, tt.expected, e.Duration(tt.text))
		})
	}
}

func TestSimulatedEngine_SpeakLifecycle(t *testing.T) {
	var out bytes.Buffer
	e := newTestSimulated(&out)
	n := newNotifications()

	u := NewUtterance(2, "hello")
	require.NoError(t, e.Speak(u, n.notify))

	first := n.next(t)
	assert.Equal(t, NotificationStarted, first.Kind)
	assert.Equal(t, u.ID, first.UtteranceID)
	assert.Equal(t, 2, first.Index)

	second := n.next(t)
	assert.Equal(t, NotificationEnded, second.Kind)
	assert.Equal(t, u.ID, second.UtteranceID)

	assert.Contains(t, out.String(), "hello")
	n.none(t, 50*time.Millisecond)
}

func TestSimulatedEngine_PauseResume(t *testing.T) {
	e := newTestSimulated(nil)
	e.minDuration = 100 * time.Millisecond
	n := newNotifications()

	require.NoError(t, e.Speak(NewUtterance(0, "x"), n.notify))
	assert.Equal(t, NotificationStarted, n.next(t).Kind)

	require.NoError(t, e.Pause())
	require.NoError(t, e.Pause())
	n.none(t, 200*time.Millisecond)

	require.NoError(t, e.Resume())
	require.NoError(t, e.Resume())
	assert.Equal(t, NotificationEnded, n.next(t).Kind)
}

func TestSimulatedEngine_Cancel(t *testing.T) {
	e := newTestSimulated(nil)
	n := newNotifications()

	require.NoError(t, e.Speak(NewUtterance(0, "x"), n.notify))
	require.NoError(t, e.Cancel())
	require.NoError(t, e.Cancel())

	// Started may already be in flight, but no end follows a cancel
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case note := <-n:
			assert.NotEqual(t, NotificationEnded, note.Kind)
		case <-deadline:
			return
		}
	}
}

func TestSimulatedEngine_PauseAfterTimerFired(t *testing.T) {
	e := newTestSimulated(nil)
	n := newNotifications()

	require.NoError(t, e.Speak(NewUtterance(0, "x"), n.notify))
	assert.Equal(t, NotificationStarted, n.next(t).Kind)

	// Hold the lock past the end of the utterance so the timer fires but
	// finish cannot run before the pause.
	e.mu.Lock()
	time.Sleep(e.Duration("x") + 50*time.Millisecond)
	e.pauseLocked()
	remaining := e.remaining
	e.mu.Unlock()

	assert.Zero(t, remaining, "no speaking time left once the timer fired")
	n.none(t, 100*time.Millisecond)

	require.NoError(t, e.Resume())
	assert.Equal(t, NotificationEnded, n.next(t).Kind)
	n.none(t, 50*time.Millisecond)
}

func TestSimulatedEngine_SpeakSupersedes(t *testing.T) {
	e := newTestSimulated(nil)
	n := newNotifications()

	first := NewUtterance(0, "first")
	second := NewUtterance(1, "second")
	require.NoError(t, e.Speak(first, n.notify))
	require.NoError(t, e.Speak(second, n.notify))

	var ends []string
	deadline := time.After(e.Duration(second.Text) + 200*time.Millisecond)
	for done := false; !done; {
		select {
		case note := <-n:
			if note.Kind == NotificationEnded {
				ends = append(ends, note.UtteranceID)
			}
		case <-deadline:
			done = true
		}
	}
	assert.Equal(t, []string{second.ID}, ends)
}

func TestSimulatedEngine_Close(t *testing.T) {
	e := newTestSimulated(nil)

	require.NoError(t, e.Close())
	err := e.Speak(NewUtterance(0, "x"), func(Notification) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, "simulated", e.Name())
}

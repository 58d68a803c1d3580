package console

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/narrator/internal/app/notification"
	"github.com/osa030/narrator/internal/app/playback"
	"github.com/osa030/narrator/internal/app/session"
	"github.com/osa030/narrator/internal/domain/lines"
)

type mockSession struct {
	mu sync.Mutex

	toggles int
	stops   int
	loaded  map[string]string
	loadErr error
	status  session.Status

	subscribed   []notification.Stream
	unsubscribed []string
}

func newMockSession() *mockSession {
	return &mockSession{loaded: make(map[string]string)}
}

func (s *mockSession) Load(source, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return s.loadErr
	}
	s.loaded[source] = text
	return nil
}

func (s *mockSession) Toggle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles++
	return nil
}

func (s *mockSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *mockSession) GetStatus() *session.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	return &st
}

func (s *mockSession) Subscribe(stream notification.Stream) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = append(s.subscribed, stream)
	return "sub-1"
}

func (s *mockSession) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = append(s.unsubscribed, id)
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestConsole(s Session, in string, files map[string]string) (*Console, *syncBuffer) {
	out := &syncBuffer{}
	c := New(s, Config{
		In:      strings.NewReader(in),
		Out:     out,
		NoColor: true,
		ReadFile: func(name string) ([]byte, error) {
			text, ok := files[name]
			if !ok {
				return nil, os.ErrNotExist
			}
			return []byte(text), nil
		},
	})
	return c, out
}

func TestConsole_Execute(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		toggles int
		stops   int
		quit    bool
		output  string
	}{
		{name: "enter toggles", input: "", toggles: 1},
		{name: "p toggles", input: "p", toggles: 1},
		{name: "pause toggles", input: "  PAUSE ", toggles: 1},
		{name: "stop", input: "s", stops: 1},
		{name: "quit", input: "q", quit: true, output: "Bye"},
		{name: "exit", input: "exit", quit: true},
		{name: "help", input: "help", output: "load <file>"},
		{name: "unknown", input: "rewind", output: `Unknown command "rewind"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMockSession()
			c, out := newTestConsole(s, "", nil)

			quit := c.Execute(tt.input)

			assert.Equal(t, tt.quit, quit)
			assert.Equal(t, tt.toggles, s.toggles)
			assert.Equal(t, tt.stops, s.stops)
			assert.Contains(t, out.String(), tt.output)
		})
	}
}

func TestConsole_Load(t *testing.T) {
	files := map[string]string{"story.txt": "one\ntwo"}

	t.Run("loads file", func(t *testing.T) {
		s := newMockSession()
		c, out := newTestConsole(s, "", files)

		c.Execute("load story.txt")

		assert.Equal(t, "one\ntwo", s.loaded["story.txt"])
		assert.Contains(t, out.String(), "Loaded story.txt")
	})

	t.Run("missing argument", func(t *testing.T) {
		s := newMockSession()
		c, out := newTestConsole(s, "", files)

		c.Execute("load")

		assert.Empty(t, s.loaded)
		assert.Contains(t, out.String(), "Usage: load <file>")
	})

	t.Run("unreadable file", func(t *testing.T) {
		s := newMockSession()
		c, out := newTestConsole(s, "", files)

		c.Execute("load missing.txt")

		assert.Empty(t, s.loaded)
		assert.Contains(t, out.String(), "Cannot read missing.txt")
	})

	t.Run("narration in progress", func(t *testing.T) {
		s := newMockSession()
		s.loadErr = errors.Wrap(playback.ErrTextLocked, "set text")
		c, out := newTestConsole(s, "", files)

		c.Execute("load story.txt")

		assert.Contains(t, out.String(), "Stop the narration before loading new text")
	})
}

func TestConsole_Status(t *testing.T) {
	s := newMockSession()
	s.status = session.Status{
		Snapshot: playback.Snapshot{
			State:      playback.StatePaused,
			PausedFrom: playback.StateWaiting,
			Cursor:     1,
			Countdown:  4,
			Lines:      lines.Split("a\nb\nc"),
		},
		Engine:    "simulated",
		Source:    "story.txt",
		Completed: 2,
	}
	c, out := newTestConsole(s, "", nil)

	c.Execute("status")

	got := out.String()
	assert.Contains(t, got, "state:     paused (from waiting)")
	assert.Contains(t, got, "line:      2/3")
	assert.Contains(t, got, "countdown: 4s")
	assert.Contains(t, got, "engine:    simulated")
	assert.Contains(t, got, "source:    story.txt")
	assert.Contains(t, got, "completed: 2")
}

func TestConsole_Run(t *testing.T) {
	s := newMockSession()
	c, out := newTestConsole(s, "p\n\ns\nq\np\n", nil)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, 2, s.toggles, "commands after quit are not run")
	assert.Equal(t, 1, s.stops)
	assert.Equal(t, []notification.Stream{c}, s.subscribed)
	assert.Equal(t, []string{"sub-1"}, s.unsubscribed)
	assert.Contains(t, out.String(), "Commands:")
}

func TestConsole_RunEndOfInput(t *testing.T) {
	s := newMockSession()
	c, _ := newTestConsole(s, "p\n", nil)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 1, s.toggles)
}

func TestConsole_RunContextCancelled(t *testing.T) {
	s := newMockSession()
	out := &syncBuffer{}
	reader, writer := io.Pipe()
	defer writer.Close()
	c := New(s, Config{In: reader, Out: out, NoColor: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConsole_Render(t *testing.T) {
	seq := lines.Split("first line\nsecond line")
	notify := func(c *Console, typ playback.EventType, s playback.Snapshot, err error) {
		require.NoError(t, c.Send(&notification.Notification{Type: typ, Snapshot: s, Err: err}))
	}

	t.Run("narration", func(t *testing.T) {
		c, out := newTestConsole(newMockSession(), "", nil)

		notify(c, playback.EventStateChanged, playback.Snapshot{State: playback.StateSpeaking, Lines: seq}, nil)
		notify(c, playback.EventLineStarted, playback.Snapshot{State: playback.StateSpeaking, Lines: seq}, nil)
		notify(c, playback.EventStateChanged, playback.Snapshot{State: playback.StateWaiting, Lines: seq, Countdown: 10}, nil)
		notify(c, playback.EventCountdown, playback.Snapshot{State: playback.StateWaiting, Lines: seq, Countdown: 10}, nil)
		notify(c, playback.EventCountdown, playback.Snapshot{State: playback.StateWaiting, Lines: seq, Countdown: 9}, nil)
		notify(c, playback.EventLineStarted, playback.Snapshot{State: playback.StateSpeaking, Lines: seq, Cursor: 1}, nil)
		notify(c, playback.EventStateChanged, playback.Snapshot{State: playback.StateFinished, Lines: seq, Cursor: 1}, nil)

		got := out.String()
		assert.Contains(t, got, "[1/2] first line\n")
		assert.Contains(t, got, "\r⏳ Next line in 10s\r⏳ Next line in  9s\n[2/2] second line\n")
		assert.Contains(t, got, "Narration finished")
	})

	t.Run("pause resume stop", func(t *testing.T) {
		c, out := newTestConsole(newMockSession(), "", nil)

		notify(c, playback.EventStateChanged, playback.Snapshot{State: playback.StateSpeaking, Lines: seq}, nil)
		notify(c, playback.EventStateChanged, playback.Snapshot{State: playback.StatePaused, Lines: seq}, nil)
		notify(c, playback.EventStateChanged, playback.Snapshot{State: playback.StateSpeaking, Lines: seq}, nil)
		notify(c, playback.EventStateChanged, playback.Snapshot{State: playback.StateIdle}, nil)

		got := out.String()
		assert.Contains(t, got, "Paused at line 1")
		assert.Contains(t, got, "Resumed")
		assert.Contains(t, got, "Stopped")
	})

	t.Run("initial idle is silent", func(t *testing.T) {
		c, out := newTestConsole(newMockSession(), "", nil)

		notify(c, playback.EventStateChanged, playback.Snapshot{State: playback.StateIdle}, nil)

		assert.Empty(t, out.String())
	})

	t.Run("engine error", func(t *testing.T) {
		c, out := newTestConsole(newMockSession(), "", nil)

		notify(c, playback.EventEngineError, playback.Snapshot{State: playback.StateIdle}, errors.New("espeak exited"))

		assert.Contains(t, out.String(), "Speech failed: espeak exited")
	})

	t.Run("hidden transcript", func(t *testing.T) {
		out := &syncBuffer{}
		c := New(newMockSession(), Config{In: strings.NewReader(""), Out: out, NoColor: true, HideTranscript: true})

		notify(c, playback.EventLineStarted, playback.Snapshot{State: playback.StateSpeaking, Lines: seq}, nil)

		assert.Equal(t, "[1/2] \n", out.String())
	})
}

// Package console provides the interactive terminal surface of the narrator.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/app/notification"
	"github.com/osa030/narrator/internal/app/playback"
	"github.com/osa030/narrator/internal/app/session"
)

// Session is the narration session driven by the console.
type Session interface {
	Load(source, text string) error
	Toggle() error
	Stop() error
	GetStatus() *session.Status
	Subscribe(stream notification.Stream) string
	Unsubscribe(id string)
}

// Config holds console configuration.
type Config struct {
	In             io.Reader
	Out            io.Writer
	NoColor        bool
	HideTranscript bool
	ReadFile       func(name string) ([]byte, error) // Defaults to os.ReadFile
}

// Console reads commands from the terminal and renders narration progress.
// It implements notification.Stream.
type Console struct {
	session        Session
	in             io.Reader
	out            io.Writer
	colours        palette
	hideTranscript bool
	readFile       func(string) ([]byte, error)

	mu          sync.Mutex
	lastState   playback.State
	inCountdown bool // A countdown line is open and must be terminated
}

// New creates a console for s.
func New(s Session, cfg Config) *Console {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.ReadFile == nil {
		cfg.ReadFile = os.ReadFile
	}

	return &Console{
		session:        s,
		in:             cfg.In,
		out:            cfg.Out,
		colours:        newPalette(cfg.NoColor),
		hideTranscript: cfg.HideTranscript,
		readFile:       cfg.ReadFile,
		lastState:      playback.StateIdle,
	}
}

// Run processes commands until quit, end of input or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := c.session.Subscribe(c)
	defer c.session.Unsubscribe(id)

	c.printHelp()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return errors.Wrap(err, "failed to read commands")
			}
			return nil
		case line := <-lines:
			if quit := c.Execute(line); quit {
				return nil
			}
		}
	}
}

// Execute runs one console command. It returns true when the user quits.
func (c *Console) Execute(line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "", "p", "pause", "play":
		c.report(c.session.Toggle())
	case "s", "stop":
		c.report(c.session.Stop())
	case "l", "load":
		c.load(arg)
	case "status":
		c.printStatus()
	case "h", "help", "?":
		c.printHelp()
	case "q", "quit", "exit":
		c.println(c.colours.Warning, "👋 Bye")
		return true
	default:
		c.println(c.colours.Info, "ℹ️  Unknown command %q, type 'help' for commands", cmd)
	}
	return false
}

func (c *Console) load(path string) {
	if path == "" {
		c.println(c.colours.Error, "❌ Usage: load <file>")
		return
	}

	data, err := c.readFile(path)
	if err != nil {
		c.println(c.colours.Error, "❌ Cannot read %s: %v", path, err)
		return
	}

	if err := c.session.Load(path, string(data)); err != nil {
		if errors.Is(err, playback.ErrTextLocked) {
			c.println(c.colours.Warning, "⚠️  Stop the narration before loading new text")
			return
		}
		c.report(err)
		return
	}
	c.println(c.colours.Success, "📄 Loaded %s", path)
}

// Send renders a playback notification.
func (c *Console) Send(n *notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := n.Snapshot
	switch n.Type {
	case playback.EventStateChanged:
		c.renderStateLocked(s)
		c.lastState = s.State

	case playback.EventLineStarted:
		c.endCountdownLocked()
		c.colours.Index.Fprintf(c.out, "[%d/%d] ", s.Cursor+1, s.Lines.Len())
		if line, ok := s.CurrentLine(); ok && !c.hideTranscript {
			c.colours.Line.Fprint(c.out, line)
		}
		fmt.Fprintln(c.out)

	case playback.EventCountdown:
		if s.State != playback.StateWaiting {
			return nil
		}
		c.colours.Info.Fprintf(c.out, "\r⏳ Next line in %2ds", s.Countdown)
		c.inCountdown = true

	case playback.EventEngineError:
		c.endCountdownLocked()
		c.colours.Error.Fprintf(c.out, "❌ Speech failed: %v\n", n.Err)
	}
	return nil
}

func (c *Console) renderStateLocked(s playback.Snapshot) {
	switch s.State {
	case playback.StatePaused:
		c.endCountdownLocked()
		c.colours.Warning.Fprintf(c.out, "⏸️  Paused at line %d\n", s.Cursor+1)
	case playback.StateSpeaking, playback.StateWaiting:
		if c.lastState == playback.StatePaused {
			c.endCountdownLocked()
			c.colours.Success.Fprintln(c.out, "▶️  Resumed")
		}
	case playback.StateFinished:
		c.endCountdownLocked()
		c.colours.Success.Fprintln(c.out, "✅ Narration finished, press Enter to start over")
	case playback.StateIdle:
		if c.lastState.IsActive() {
			c.endCountdownLocked()
			c.colours.Warning.Fprintln(c.out, "⏹️  Stopped")
		}
	}
}

func (c *Console) endCountdownLocked() {
	if c.inCountdown {
		fmt.Fprintln(c.out)
		c.inCountdown = false
	}
}

func (c *Console) printStatus() {
	st := c.session.GetStatus()
	s := st.Snapshot

	c.mu.Lock()
	defer c.mu.Unlock()
	c.endCountdownLocked()

	c.colours.Prompt.Fprintln(c.out, "📊 Status")
	fmt.Fprintf(c.out, "  state:     %s", s.State)
	if s.State == playback.StatePaused {
		fmt.Fprintf(c.out, " (from %s)", s.PausedFrom)
	}
	fmt.Fprintln(c.out)
	if !s.Lines.IsEmpty() {
		fmt.Fprintf(c.out, "  line:      %d/%d\n", s.Cursor+1, s.Lines.Len())
	}
	if s.State == playback.StateWaiting || s.PausedFrom == playback.StateWaiting {
		fmt.Fprintf(c.out, "  countdown: %ds\n", s.Countdown)
	}
	fmt.Fprintf(c.out, "  engine:    %s\n", st.Engine)
	if st.Source != "" {
		fmt.Fprintf(c.out, "  source:    %s\n", st.Source)
	}
	fmt.Fprintf(c.out, "  completed: %d\n", st.Completed)
}

func (c *Console) printHelp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endCountdownLocked()

	c.colours.Prompt.Fprintln(c.out, "🎧 Commands:")
	fmt.Fprintln(c.out, "  Enter, p      play / pause / resume")
	fmt.Fprintln(c.out, "  s             stop")
	fmt.Fprintln(c.out, "  load <file>   load new text (when stopped or finished)")
	fmt.Fprintln(c.out, "  status        show narration status")
	fmt.Fprintln(c.out, "  q             quit")
}

func (c *Console) report(err error) {
	if err == nil {
		return
	}
	zlog.Error().Msgf("console: command failed: %v", err)
	c.println(c.colours.Error, "❌ %v", err)
}

func (c *Console) println(col *color.Color, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endCountdownLocked()
	col.Fprintf(c.out, format+"\n", args...)
}

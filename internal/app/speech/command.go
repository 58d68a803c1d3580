package speech

import (
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// textPlaceholder is replaced by the utterance text in command arguments.
const textPlaceholder = "{text}"

// CommandSettings represents settings shared by subprocess engines.
type CommandSettings struct {
	Binary string   `yaml:"binary" mapstructure:"binary"`
	Args   []string `yaml:"args" mapstructure:"args"`
}

// CommandEngine speaks each utterance by running one subprocess.
// Pause and resume suspend the process where the platform allows it.
type CommandEngine struct {
	name   string
	binary string
	args   []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	current *Utterance
	paused  bool
	closed  bool
}

// NewCommandEngine creates a subprocess engine running binary with args.
func NewCommandEngine(name, binary string, args []string) *CommandEngine {
	return &CommandEngine{
		name:   name,
		binary: binary,
		args:   args,
	}
}

// Name returns the engine type name.
func (e *CommandEngine) Name() string {
	return e.name
}

// Speak starts the subprocess for u. Any outstanding utterance is cancelled first.
func (e *CommandEngine) Speak(u Utterance, notify NotifyFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.cancelLocked()

	cmd := exec.Command(e.binary, buildArgs(e.args, u.Text)...)
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start %s", e.name)
	}

	e.cmd = cmd
	e.current = &u
	e.paused = false

	zlog.Debug().Msgf("speech: %s started: pid=%d index=%d", e.name, cmd.Process.Pid, u.Index)

	go e.wait(cmd, u, notify)
	return nil
}

// wait reports the lifecycle of one subprocess unless it was superseded.
func (e *CommandEngine) wait(cmd *exec.Cmd, u Utterance, notify NotifyFunc) {
	if e.isCurrent(u.ID) {
		notify(started(u))
	}

	err := cmd.Wait()

	e.mu.Lock()
	if !e.isCurrentLocked(u.ID) {
		e.mu.Unlock()
		return
	}
	e.current = nil
	e.cmd = nil
	e.paused = false
	e.mu.Unlock()

	if err != nil {
		notify(failed(u, errors.Wrapf(err, "%s exited with error", e.name)))
		return
	}
	notify(ended(u))
}

// Pause suspends the running subprocess.
func (e *CommandEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || e.paused {
		return nil
	}
	if err := pauseProcess(e.cmd.Process); err != nil {
		return errors.Wrapf(err, "failed to pause %s", e.name)
	}
	e.paused = true
	return nil
}

// Resume continues a suspended subprocess.
func (e *CommandEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || !e.paused {
		return nil
	}
	if err := resumeProcess(e.cmd.Process); err != nil {
		return errors.Wrapf(err, "failed to resume %s", e.name)
	}
	e.paused = false
	return nil
}

// Cancel kills the running subprocess, if any.
func (e *CommandEngine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelLocked()
}

// Close cancels any outstanding utterance and rejects further ones.
func (e *CommandEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return e.cancelLocked()
}

func (e *CommandEngine) cancelLocked() error {
	cmd := e.cmd
	e.cmd = nil
	e.current = nil
	e.paused = false

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrapf(err, "failed to kill %s", e.name)
	}
	return nil
}

func (e *CommandEngine) isCurrent(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isCurrentLocked(id)
}

func (e *CommandEngine) isCurrentLocked(id string) bool {
	return e.current != nil && e.current.ID == id
}

// buildArgs substitutes the text placeholder, or appends the text when there is none.
func buildArgs(args []string, text string) []string {
	out := make([]string, 0, len(args)+1)
	substituted := false
	for _, a := range args {
		if strings.Contains(a, textPlaceholder) {
			a = strings.ReplaceAll(a, textPlaceholder, text)
			substituted = true
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, text)
	}
	return out
}

// findExecutable returns the first candidate found in PATH.
func findExecutable(candidates ...string) (string, error) {
	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrNotAvailable, "none of %v found in PATH", candidates)
}

// Package session provides the narration session manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/app/notification"
	"github.com/osa030/narrator/internal/app/playback"
	"github.com/osa030/narrator/internal/app/speech"
)

var ErrSessionClosed = errors.New("session is closed")

// Config holds session configuration.
type Config struct {
	Clock playback.Clock // Defaults to the wall clock
}

// Manager owns one narration: the playback controller, its speech engine and
// the notification fan-out to observers.
type Manager struct {
	mu sync.RWMutex

	// Components
	playback     *playback.Controller
	notification *notification.Manager
	engineName   string

	// Loaded text
	source   string
	loadedAt time.Time

	// Narrations that reached the last line
	completed int

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a new session manager. The session takes ownership of
// engine and closes it on Close.
func NewManager(engine speech.Engine, cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		playback:     playback.NewController(engine, playback.Config{Clock: cfg.Clock}),
		notification: notification.NewManager(),
		engineName:   engine.Name(),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Start starts forwarding playback events to subscribers.
func (m *Manager) Start() {
	zlog.Info().Msgf("session started: engine=%s", m.engineName)
	go m.playbackLoop()
}

// Load replaces the narrated text. source names where the text came from.
func (m *Manager) Load(source, text string) error {
	if err := m.playback.SetText(text); err != nil {
		return m.wrapClosed(err)
	}

	m.mu.Lock()
	m.source = source
	m.loadedAt = time.Now()
	m.mu.Unlock()

	zlog.Info().Msgf("text loaded: source=%s bytes=%d", source, len(text))
	return nil
}

// Play starts or resumes narration.
func (m *Manager) Play() error {
	return m.wrapClosed(m.playback.Play())
}

// Pause pauses narration.
func (m *Manager) Pause() error {
	return m.wrapClosed(m.playback.Pause())
}

// Resume resumes narration.
func (m *Manager) Resume() error {
	return m.wrapClosed(m.playback.Resume())
}

// Toggle switches between playing and paused.
func (m *Manager) Toggle() error {
	return m.wrapClosed(m.playback.Toggle())
}

// Stop stops narration.
func (m *Manager) Stop() error {
	return m.wrapClosed(m.playback.Stop())
}

// Status represents the current session status.
type Status struct {
	Snapshot  playback.Snapshot
	Engine    string
	Source    string
	LoadedAt  time.Time
	Completed int
	Observers int
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() *Status {
	snapshot := m.playback.Snapshot()

	m.mu.RLock()
	defer m.mu.RUnlock()

	return &Status{
		Snapshot:  snapshot,
		Engine:    m.engineName,
		Source:    m.source,
		LoadedAt:  m.loadedAt,
		Completed: m.completed,
		Observers: m.notification.SubscriberCount(),
	}
}

// Subscribe registers an observer and sends it the current state.
func (m *Manager) Subscribe(stream notification.Stream) string {
	id := m.notification.Subscribe(stream)

	initial := notification.FromEvent(playback.Event{
		Type:     playback.EventStateChanged,
		Snapshot: m.playback.Snapshot(),
	})
	initial.SequenceNo = m.notification.NextSequenceNo()
	if err := m.notification.Send(id, initial); err != nil {
		zlog.Warn().Msgf("failed to send initial state: id=%s error=%v", id, err)
	}
	return id
}

// Unsubscribe removes an observer.
func (m *Manager) Unsubscribe(id string) {
	m.notification.Unsubscribe(id)
}

// Done returns a channel that is closed when the session is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops narration and releases the engine.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.playback.Close()
		m.cancel()
		m.notification.Close()
		close(m.done)
		zlog.Info().Msg("session closed")
	})
}

// playbackLoop handles playback events.
func (m *Manager) playbackLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback loop panicked: %v", r)
			// Restart loop to keep observers updated
			zlog.Info().Msg("restarting playback loop")
			go m.playbackLoop()
		}
	}()

	events := m.playback.Events()
	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.handlePlaybackEvent(event)
		}
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	zlog.Debug().Msgf("playback event: type=%s state=%s cursor=%d countdown=%d",
		event.Type, event.Snapshot.State, event.Snapshot.Cursor, event.Snapshot.Countdown)

	switch event.Type {
	case playback.EventStateChanged:
		if event.Snapshot.State == playback.StateFinished {
			m.mu.Lock()
			m.completed++
			m.mu.Unlock()
		}
	case playback.EventEngineError:
		zlog.Error().Msgf("narration aborted: %v", event.Err)
	}

	m.notification.Broadcast(notification.FromEvent(event))
}

func (m *Manager) wrapClosed(err error) error {
	if errors.Is(err, playback.ErrClosed) {
		return ErrSessionClosed
	}
	return err
}

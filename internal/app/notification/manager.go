// Package notification provides the notification manager for broadcasting
// playback changes to observers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/narrator/internal/app/playback"
)

const defaultSendTimeout = 500 * time.Millisecond

// Notification is a playback change delivered to subscribers.
type Notification struct {
	SequenceNo uint64
	Type       playback.EventType
	Snapshot   playback.Snapshot
	Err        error // Set for engine errors
	Time       time.Time
}

// FromEvent converts a playback event into a notification.
func FromEvent(ev playback.Event) *Notification {
	return &Notification{
		Type:     ev.Type,
		Snapshot: ev.Snapshot,
		Err:      ev.Err,
		Time:     time.Now(),
	}
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   defaultSendTimeout,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s", id)
	return id
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast sends a playback notification to every observer in parallel.
// A slow observer is skipped after sendTimeout and keeps its subscription;
// an observer whose Send returns an error is gone (a closed console) and is
// dropped once all sends are done.
func (m *Manager) Broadcast(notification *Notification) {
	notification.SequenceNo = m.NextSequenceNo()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var (
		wg     sync.WaitGroup
		failMu sync.Mutex
		failed []string
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Warn().Msgf("notification: observer failed: id=%s type=%s error=%v", s.id, notification.Type, err)
					failMu.Lock()
					failed = append(failed, s.id)
					failMu.Unlock()
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: observer too slow: id=%s seq=%d", s.id, notification.SequenceNo)
			}
		}(sub)
	}
	wg.Wait()

	if len(failed) == 0 {
		return
	}
	m.mu.Lock()
	for _, id := range failed {
		delete(m.subscriptions, id)
	}
	m.mu.Unlock()
}

// Send sends a notification to a specific subscriber.
func (m *Manager) Send(subscriptionID string, notification *Notification) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil
	}

	return sub.stream.Send(notification)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}

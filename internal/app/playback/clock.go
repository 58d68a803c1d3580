package playback

import (
	"context"
	"time"
)

// Clock schedules timer callbacks. Callbacks run on their own goroutine and
// the returned cancel functions are safe to call more than once.
type Clock interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
	Every(d time.Duration, f func()) (cancel func())
}

// WallClock returns a Clock backed by real time.
func WallClock() Clock {
	return wallClock{}
}

type wallClock struct{}

// AfterFunc calls f once after d unless cancelled first.
func (wallClock) AfterFunc(d time.Duration, f func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
			f()
		}
	}()

	return cancel
}

// Every calls f every d until cancelled.
func (wallClock) Every(d time.Duration, f func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f()
			}
		}
	}()

	return cancel
}

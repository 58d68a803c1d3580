package playback

import "time"

// DelaySeconds is the pause between two lines.
const DelaySeconds = 10

const tickInterval = time.Second

// delayTimer drives the pause between two lines with a repeating countdown
// tick and a one-shot expiry. It is only used from the control loop; timer
// callbacks re-enter the loop through post.
//
// Every Start opens a new generation. Callbacks of an older generation are
// dropped, so nothing from a cancelled cycle can change the countdown or
// advance playback.
type delayTimer struct {
	clock    Clock
	post     func(func()) bool
	onTick   func(countdown int)
	onExpire func()

	countdown    int
	generation   uint64
	cancelTick   func()
	cancelExpiry func()
}

func newDelayTimer(clock Clock, post func(func()) bool, onTick func(int), onExpire func()) *delayTimer {
	return &delayTimer{
		clock:     clock,
		post:      post,
		onTick:    onTick,
		onExpire:  onExpire,
		countdown: DelaySeconds,
	}
}

// Start resets the countdown and arms both timers.
func (d *delayTimer) Start() {
	d.Cancel()
	d.countdown = DelaySeconds
	gen := d.generation

	d.cancelTick = d.clock.Every(tickInterval, func() {
		d.post(func() { d.tick(gen) })
	})
	d.cancelExpiry = d.clock.AfterFunc(DelaySeconds*time.Second, func() {
		d.post(func() { d.expire(gen) })
	})
}

// Cancel stops both timers. The countdown keeps its value.
func (d *delayTimer) Cancel() {
	if d.cancelTick != nil {
		d.cancelTick()
		d.cancelTick = nil
	}
	if d.cancelExpiry != nil {
		d.cancelExpiry()
		d.cancelExpiry = nil
	}
	d.generation++
}

// Reset stops both timers and restores the full countdown.
func (d *delayTimer) Reset() {
	d.Cancel()
	d.countdown = DelaySeconds
}

// Countdown returns the seconds left.
func (d *delayTimer) Countdown() int {
	return d.countdown
}

func (d *delayTimer) tick(gen uint64) {
	if gen != d.generation || d.countdown == 0 {
		return
	}
	d.countdown--
	d.onTick(d.countdown)
}

func (d *delayTimer) expire(gen uint64) {
	if gen != d.generation {
		return
	}
	d.Cancel()
	d.onExpire()
}

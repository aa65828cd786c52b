//
// Area timers. Each area carries four independent countdown timers and the
// server one global timer; they are purely observational state surfaced to
// clients as TI packets and never gate server logic.
//

package courtroom

import (
	"sync"
	"time"
)

const areaTimerCount = 4

// timer ids on the wire: 0 is the global timer, 1..4 the area timers.
const globalTimerID = 0

// TI packet command values.
const (
	tiStart = "0"
	tiStop  = "1"
	tiShow  = "2"
	tiHide  = "3"
)

// Timer is one countdown timer.
type Timer struct {
	mu       sync.Mutex
	running  bool
	deadline time.Time
	expire   *time.Timer
}

func newTimer() *Timer {
	return &Timer{}
}

// Start arms the timer for d, invoking onExpire from a timer goroutine
// when it runs out. Restarting a running timer replaces its deadline.
func (t *Timer) Start(d time.Duration, onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expire != nil {
		t.expire.Stop()
	}
	t.running = true
	t.deadline = time.Now().Add(d)
	t.expire = time.AfterFunc(d, func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		if onExpire != nil {
			onExpire()
		}
	})
}

// Stop cancels the countdown; it is a no-op on an idle timer.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expire != nil {
		t.expire.Stop()
	}
	t.running = false
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Remaining reports the time left, zero if the timer is idle or expired.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	d := time.Until(t.deadline)
	if d < 0 {
		return 0
	}
	return d
}

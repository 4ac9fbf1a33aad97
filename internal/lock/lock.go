// Package lock provides a mutex with bounded acquisition, mirroring the
// take-with-timeout discipline the display and canvas layers rely on: a
// caller that cannot get the lock in time receives a timeout error instead
// of blocking forever behind a 30-second panel refresh.
package lock

import (
	"fmt"
	"time"

	"github.com/MePride/pin/internal/errs"
)

// Timed is a mutual-exclusion lock with bounded Acquire. The zero value is
// not usable; call New.
type Timed struct {
	ch chan struct{}
}

// New returns an unlocked Timed lock.
func New() *Timed {
	l := &Timed{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

// Acquire takes the lock, waiting up to timeout. A timeout of 0 waits
// indefinitely. Returns errs.ErrTimeout if the lock could not be taken.
func (l *Timed) Acquire(timeout time.Duration) error {
	if timeout <= 0 {
		<-l.ch
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-l.ch:
		return nil
	case <-t.C:
		return fmt.Errorf("lock not acquired within %v: %w", timeout, errs.ErrTimeout)
	}
}

// Release gives the lock back. Releasing an unheld lock panics, the same
// way sync.Mutex.Unlock does.
func (l *Timed) Release() {
	select {
	case l.ch <- struct{}{}:
	default:
		panic("lock: release of unheld lock")
	}
}

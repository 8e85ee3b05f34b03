package memscan

import (
	"context"
	"errors"
	"time"

	"github.com/memscout/memscout/pkg/logflags"
)

// DefaultFreezeInterval is the tick between freeze writes when the
// caller does not specify one.
const DefaultFreezeInterval = 100 * time.Millisecond

// FreezeOutcome reports how a freeze loop ended.
type FreezeOutcome int

const (
	// FreezeCompleted means the freeze ran for its whole duration.
	FreezeCompleted FreezeOutcome = iota
	// FreezeCancelled means the freeze stopped before its deadline,
	// either by cancellation or because the session closed.
	FreezeCancelled
)

func (o FreezeOutcome) String() string {
	switch o {
	case FreezeCompleted:
		return "completed"
	case FreezeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Freeze re-writes v at addr once immediately and then once per tick,
// until d elapses (FreezeCompleted) or ctx is cancelled
// (FreezeCancelled). A non-positive d means no deadline: the freeze
// runs until cancelled.
//
// The address is bound here, at start; the freezer never re-resolves
// candidate indexes. A tick whose write fails is logged and the loop
// keeps going, except when the session has closed, which ends the loop
// with ErrSessionClosed. Cancellation is honored between ticks, never
// in the middle of a write.
//
// Freeze blocks; use StartFreeze to run it in the background.
func (s *Session) Freeze(ctx context.Context, addr uint64, v Value, d, tick time.Duration) (FreezeOutcome, error) {
	if err := s.Valid(); err != nil {
		return FreezeCancelled, err
	}
	if tick <= 0 {
		tick = DefaultFreezeInterval
	}

	logger := logflags.FreezeLogger()
	logger.Debugf("freezing %s %s at %#x (duration %v, tick %v)", v.Kind(), v, addr, d, tick)

	var deadline <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if err := s.ModifyByAddress(addr, v); err != nil {
			if errors.Is(err, ErrSessionClosed) {
				logger.Debugf("freeze at %#x ended: session closed", addr)
				return FreezeCancelled, err
			}
			logger.Warnf("freeze write at %#x failed: %v", addr, err)
		}
		select {
		case <-ctx.Done():
			logger.Debugf("freeze at %#x cancelled", addr)
			return FreezeCancelled, nil
		case <-deadline:
			logger.Debugf("freeze at %#x completed", addr)
			return FreezeCompleted, nil
		case <-ticker.C:
		}
	}
}

// FreezeTask is a freeze loop running on its own goroutine.
type FreezeTask struct {
	Addr     uint64
	Value    Value
	Duration time.Duration
	Started  time.Time

	cancel  context.CancelFunc
	done    chan struct{}
	outcome FreezeOutcome
	err     error
}

// StartFreeze launches Freeze on a new goroutine so the caller stays
// responsive. The returned task can be cancelled and waited on.
func (s *Session) StartFreeze(addr uint64, v Value, d, tick time.Duration) *FreezeTask {
	ctx, cancel := context.WithCancel(context.Background())
	task := &FreezeTask{
		Addr:     addr,
		Value:    v,
		Duration: d,
		Started:  time.Now(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		task.outcome, task.err = s.Freeze(ctx, addr, v, d, tick)
		close(task.done)
	}()
	return task
}

// Cancel asks the freeze loop to stop. It does not wait; use Wait or
// Done for that.
func (t *FreezeTask) Cancel() {
	t.cancel()
}

// Done is closed once the freeze loop has ended.
func (t *FreezeTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the freeze loop ends and returns its outcome.
func (t *FreezeTask) Wait() (FreezeOutcome, error) {
	<-t.done
	return t.outcome, t.err
}

package watch

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultDebounce is the quiet period that must follow the last qualifying
// event before a cycle starts.
const DefaultDebounce = 3 * time.Second

// State is the scheduler's position in its IDLE → PENDING → FIRING cycle.
type State int32

// Scheduler states.
const (
	StateIdle State = iota
	StatePending
	StateFiring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFiring:
		return "firing"
	default:
		return "unknown"
	}
}

// CycleFunc runs one merge-and-archive cycle. It receives a context that
// is not canceled by shutdown, so a started cycle runs to completion.
type CycleFunc func(ctx context.Context)

// Scheduler coalesces bursts of events into single cycle invocations. At
// most one timer is pending and at most one cycle runs at any time. Every
// event while PENDING restarts the timer; events while FIRING cause one
// re-entry into PENDING once the cycle finishes.
//
// Only the Run goroutine touches the timer and the transition logic;
// OnEvent just signals it, so no lock guards the timer handle.
type Scheduler struct {
	delay  time.Duration
	cycle  CycleFunc
	logger *slog.Logger

	notify chan struct{}
	state  atomic.Int32
}

// NewScheduler creates a Scheduler that calls cycle after delay of quiet.
func NewScheduler(delay time.Duration, cycle CycleFunc, logger *slog.Logger) *Scheduler {
	if delay <= 0 {
		delay = DefaultDebounce
	}

	return &Scheduler{
		delay:  delay,
		cycle:  cycle,
		logger: logger,
		notify: make(chan struct{}, 1),
	}
}

// Delay returns the configured quiet period.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// State returns the current state. Safe for concurrent use.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// OnEvent records a qualifying event. It never blocks and is safe for
// concurrent callers. A signal already waiting in the buffer is read by
// Run after this call, so dropping the duplicate can only lengthen the
// quiet period, never shorten it.
func (s *Scheduler) OnEvent(ev FileEvent) {
	s.logger.Debug("scheduler event",
		slog.String("path", ev.Path),
		slog.String("kind", ev.Kind.String()),
	)

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run drives the state machine until ctx is canceled. On cancellation a
// pending timer is discarded; a cycle already running is waited for
// before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(s.delay)
	timer.Stop() // idle until the first event
	defer timer.Stop()

	cycleCtx := context.WithoutCancel(ctx)

	var done chan struct{} // non-nil while FIRING

	dirty := false

	for {
		select {
		case <-ctx.Done():
			if s.State() == StatePending {
				s.logger.Info("discarding pending merge on shutdown")
			}

			if done != nil {
				s.logger.Info("waiting for in-flight cycle to finish")
				<-done
			}

			s.setState(StateIdle)

			return nil

		case <-s.notify:
			switch s.State() {
			case StateIdle, StatePending:
				timer.Reset(s.delay)
				s.transition(StatePending)
			case StateFiring:
				dirty = true
			}

		case <-timer.C:
			s.transition(StateFiring)

			done = make(chan struct{})
			go s.fire(cycleCtx, done)

		case <-done:
			done = nil

			if dirty {
				// Events arrived during the cycle: give them a full quiet
				// period of their own.
				dirty = false

				timer.Reset(s.delay)
				s.transition(StatePending)

				continue
			}

			s.transition(StateIdle)
		}
	}
}

// fire runs one cycle and closes done when it returns.
func (s *Scheduler) fire(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	start := time.Now()

	s.cycle(ctx)

	s.logger.Debug("cycle finished", slog.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) transition(to State) {
	from := s.State()
	s.setState(to)

	if from == to {
		s.logger.Debug("merge rescheduled", slog.Duration("delay", s.delay))
		return
	}

	s.logger.Debug("scheduler transition",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)

	if to == StatePending {
		s.logger.Info("merge scheduled", slog.Duration("delay", s.delay))
	}
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

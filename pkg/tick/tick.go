package tick

import (
	"sync"
	"time"

	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"github.com/nm-morais/go-boxtimer/pkg/logs"
	"github.com/sirupsen/logrus"
)

const tickSourceCaller = "TickSource"

// DefaultInterval is the nominal wake-up cadence.
const DefaultInterval = 100 * time.Millisecond

// Source delivers elapsed-time deltas to a consumer until told to stop.
// The consumer never sees a negative delta, and between one Start and the
// next Stop the deltas sum to the wall-clock time that actually passed.
type Source interface {
	Start(deliver func(delta time.Duration)) errors.Error
	Stop()
}

// MonotonicSource wakes up on a nominal ticker interval but reports the
// elapsed time measured on the monotonic clock, not the interval itself.
// A wake-up delayed by a suspended scheduler therefore reports one large
// delta instead of silently losing time. Every Start resets the baseline
// to now, so nothing is attributed to the time spent stopped.
type MonotonicSource struct {
	interval time.Duration
	logger   *logrus.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

func NewMonotonicSource(interval time.Duration) *MonotonicSource {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &MonotonicSource{
		interval: interval,
		logger:   logs.NewLogger(tickSourceCaller),
	}
}

func (s *MonotonicSource) Start(deliver func(delta time.Duration)) errors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.TemporaryError(errors.TickSourceUnavailable, "tick source already running", tickSourceCaller)
	}
	if deliver == nil {
		return errors.NonFatalError(errors.TickSourceUnavailable, "nil delivery target", tickSourceCaller)
	}
	s.stopCh = make(chan struct{})
	s.running = true
	s.logger.Debugf("starting, nominal interval %s", s.interval)
	go s.run(deliver, s.stopCh)
	return nil
}

func (s *MonotonicSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

func (s *MonotonicSource) run(deliver func(delta time.Duration), stopCh chan struct{}) {
	last := time.Now()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			delta := now.Sub(last)
			last = now
			if delta < 0 {
				delta = 0
			}
			select {
			case <-stopCh:
				return
			default:
			}
			deliver(delta)
		}
	}
}

// Package autosync runs a push on a fixed interval until stopped. Push
// failures are delivered on an error channel drained by ListenErrors.
package autosync

import (
	"context"
	"sync"
	"time"

	"github.com/patric-chuzhbe/scratchpad/internal/logger"
)

// Pusher uploads the local state.
type Pusher func(ctx context.Context) error

type AutoSync struct {
	push         Pusher
	interval     time.Duration
	errorChannel chan error

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func New(push Pusher, interval time.Duration, channelCapacity int) *AutoSync {
	return &AutoSync{
		push:         push,
		interval:     interval,
		errorChannel: make(chan error, channelCapacity),
	}
}

// ListenErrors calls callback for every failed push until the worker stops.
func (s *AutoSync) ListenErrors(callback func(error)) {
	go func() {
		for err := range s.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the worker. The first push happens one interval after Run.
// Calling Run more than once, or after Stop, has no effect.
func (s *AutoSync) Run(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer close(s.errorChannel)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.push(ctx); err != nil {
					select {
					case s.errorChannel <- err:
					default:
						logger.Log.Debugln("autosync error dropped:", err)
					}
					continue
				}
				logger.Log.Debugln("periodic sync done")
			}
		}
	}()
}

// Stop cancels the worker. A push in progress is not awaited; use Wait.
func (s *AutoSync) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	if s.cancel == nil {
		close(s.errorChannel)
		return
	}
	s.cancel()
}

// Wait blocks until a started worker has exited.
func (s *AutoSync) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

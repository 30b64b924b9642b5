// Package lifecycle starts and stops the camera workers and the alert
// dispatcher as one unit with a bounded, cooperative shutdown.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikeyg42/sentinel/internal/alert"
	"github.com/mikeyg42/sentinel/internal/camera"
)

// Controller owns the goroutines of the capture and dispatch pipeline.
type Controller struct {
	workers     []*camera.Worker
	dispatcher  *alert.Dispatcher
	stopTimeout time.Duration
	logger      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	started bool
}

func NewController(workers []*camera.Worker, dispatcher *alert.Dispatcher,
	stopTimeout time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		workers:     workers,
		dispatcher:  dispatcher,
		stopTimeout: stopTimeout,
		logger:      logger.Named("lifecycle"),
		done:        make(chan struct{}),
	}
}

// Start launches one goroutine per camera worker plus the dispatcher.
// It returns immediately; the pipeline runs until Stop or until parent is
// cancelled.
func (c *Controller) Start(parent context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel

	var wg sync.WaitGroup
	for _, w := range c.workers {
		wg.Add(1)
		go func(w *camera.Worker) {
			defer wg.Done()
			w.Run(ctx)
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.dispatcher.Run(ctx)
	}()

	go func() {
		wg.Wait()
		close(c.done)
	}()

	c.logger.Info("pipeline started", zap.Int("cameras", len(c.workers)))
}

// Stop signals every goroutine and waits up to the stop timeout. Workers
// still running after the deadline are logged and abandoned; shutdown
// proceeds regardless.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.started || c.cancel == nil {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	cancel()

	select {
	case <-c.done:
		c.logger.Info("pipeline stopped")
	case <-time.After(c.stopTimeout):
		for _, w := range c.workers {
			if w.State() != camera.StateStopped {
				c.logger.Warn("worker did not stop in time",
					zap.String("state", w.State().String()))
			}
		}
	}
}

// Done is closed once every pipeline goroutine has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Package lifecycle coordinates daemon startup and shutdown: one
// context/cancel pair fanned out to every long-running task, a WaitGroup
// joining their exit, and OS signal handling that trips the same
// cancellation path a fatal task error does.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Task is a long-running component that runs until ctx is cancelled or it
// hits a fatal error.
type Task func(ctx context.Context) error

// Coordinator owns the shutdown token every task observes and collects the
// first fatal error any task returns.
type Coordinator struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	errOnce sync.Once
	firstErr error
}

// New builds a Coordinator whose context is cancelled on SIGINT/SIGTERM in
// addition to an explicit Shutdown call.
func New(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{logger: logger, ctx: ctx, cancel: cancel}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			c.logger.Info("lifecycle: shutdown signal received", zap.String("signal", sig.String()))
			c.Shutdown()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return c
}

// Go launches a task on its own goroutine. If the task returns a non-nil
// error, the coordinator records it and trips shutdown for every other
// task.
func (c *Coordinator) Go(name string, task Task) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := task(c.ctx); err != nil && c.ctx.Err() == nil {
			c.logger.Error("lifecycle: task exited with error", zap.String("task", name), zap.Error(err))
			c.errOnce.Do(func() {
				c.mu.Lock()
				c.firstErr = err
				c.mu.Unlock()
			})
			c.cancel()
		} else {
			c.logger.Debug("lifecycle: task exited", zap.String("task", name))
		}
	}()
}

// Shutdown trips the shutdown token. Safe to call more than once.
func (c *Coordinator) Shutdown() {
	c.cancel()
}

// Wait blocks until every task launched with Go has returned, then reports
// the first fatal error any of them returned, if any.
func (c *Coordinator) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstErr
}

// Context returns the coordinator's shutdown context, for components that
// need it before a Go-launched task starts (e.g. to build a backend).
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

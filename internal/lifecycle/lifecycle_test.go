package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitReturnsNilWhenEveryTaskExitsClean(t *testing.T) {
	c := New(nil)
	c.Go("clean", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	c.Shutdown()
	assert.NoError(t, c.Wait())
}

func TestFatalTaskErrorTripsShutdown(t *testing.T) {
	c := New(nil)
	boom := errors.New("boom")

	c.Go("failing", func(ctx context.Context) error {
		return boom
	})
	c.Go("long-running", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := c.Wait()
	assert.ErrorIs(t, err, boom)
}

func TestFirstErrorWins(t *testing.T) {
	c := New(nil)
	first := errors.New("first")
	second := errors.New("second")

	c.Go("a", func(ctx context.Context) error { return first })
	c.Go("b", func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return second
	})

	err := c.Wait()
	assert.ErrorIs(t, err, first)
}

func TestShutdownIsIdempotent(t *testing.T) {
	c := New(nil)
	require.NotPanics(t, func() {
		c.Shutdown()
		c.Shutdown()
	})
	assert.NoError(t, c.Wait())
}

func TestContextCancelledAfterShutdown(t *testing.T) {
	c := New(nil)
	c.Shutdown()
	select {
	case <-c.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("expected context to be cancelled")
	}
}

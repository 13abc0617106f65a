package testutil

import (
	"log"
	"os"
	"sync"
	"testing"
	"time"
)

func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[tactics-test] ", log.LstdFlags|log.Lmicroseconds)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

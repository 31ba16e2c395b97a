package queue

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingReclaimer struct {
	calls atomic.Int64
	fail  bool
}

func (c *countingReclaimer) ReclaimExpired() (int, error) {
	c.calls.Add(1)
	if c.fail {
		return 0, errors.New("store unavailable")
	}
	return 1, nil
}

func TestReaper_SweepsUntilStopped(t *testing.T) {
	target := &countingReclaimer{}
	r := NewReaper(target, 5*time.Millisecond, nil)

	r.Start()
	r.Start()
	assert.Eventually(t, func() bool { return target.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
	stopped := target.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, target.calls.Load())
}

func TestReaper_KeepsRunningAfterErrors(t *testing.T) {
	target := &countingReclaimer{fail: true}
	r := NewReaper(target, 5*time.Millisecond, nil)

	r.Start()
	defer r.Stop()
	assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/signalgraph/internal/logging"
)

func TestExclusivity_OverlappingTicksAreSkipped(t *testing.T) {
	s := New(logging.New("error", nil))
	var running int32
	var overlapDetected int32

	s.Register(Job{
		Name:    "slow",
		Period:  5 * time.Millisecond,
		LockKey: "window:7d",
		Run: func(ctx context.Context) error {
			if !atomic.CompareAndSwapInt32(&running, 0, 1) {
				atomic.StoreInt32(&overlapDetected, 1)
				return nil
			}
			defer atomic.StoreInt32(&running, 0)
			time.Sleep(20 * time.Millisecond)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Start(ctx)
	time.Sleep(70 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(0), atomic.LoadInt32(&overlapDetected))
}

func TestIndependentLockKeys_RunConcurrently(t *testing.T) {
	s := New(logging.New("error", nil))
	done := make(chan string, 2)

	s.Register(Job{Name: "a", Period: 5 * time.Millisecond, LockKey: "network:eth", Run: func(ctx context.Context) error {
		select {
		case done <- "a":
		default:
		}
		return nil
	}})
	s.Register(Job{Name: "b", Period: 5 * time.Millisecond, LockKey: "network:polygon", Run: func(ctx context.Context) error {
		select {
		case done <- "b":
		default:
		}
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	close(done)
	seen := map[string]bool{}
	for v := range done {
		seen[v] = true
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) HealthPing(ctx context.Context) error { return f(ctx) }

func TestCheckerStartsUnhealthy(t *testing.T) {
	c := NewChecker("remote", pingFunc(func(context.Context) error { return nil }), time.Second, zerolog.Nop())
	if c.IsHealthy() {
		t.Fatal("checker must start unhealthy before the first probe")
	}
}

func TestCheckerCachesProbeResult(t *testing.T) {
	var fail atomic.Bool
	c := NewChecker("remote", pingFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("unreachable")
		}
		return nil
	}), time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx, 10*time.Millisecond)

	waitFor(t, func() bool { return c.IsHealthy() })

	fail.Store(true)
	waitFor(t, func() bool { return !c.IsHealthy() })

	fail.Store(false)
	waitFor(t, func() bool { return c.IsHealthy() })
}

func TestAllHealthy(t *testing.T) {
	up := NewChecker("up", pingFunc(func(context.Context) error { return nil }), time.Second, zerolog.Nop())
	down := NewChecker("down", pingFunc(func(context.Context) error { return errors.New("no") }), time.Second, zerolog.Nop())
	up.healthy.Store(1)

	if !AllHealthy(up) {
		t.Fatal("single healthy checker")
	}
	if AllHealthy(up, down) {
		t.Fatal("one unhealthy checker must fail the aggregate")
	}
	if !AllHealthy() {
		t.Fatal("no checkers means healthy")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingTicker struct {
	calls atomic.Int64
	err   error
}

func (c *countingTicker) Tick(_ context.Context) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestReconcilerTicksAndStops(t *testing.T) {
	svc := &countingTicker{}
	r := NewSessionReconciler(svc, 10*time.Millisecond, zerolog.Nop())

	r.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	r.Stop()

	got := svc.calls.Load()
	// One immediate pass plus roughly five interval passes; the exact
	// count depends on scheduling, the floor is what matters.
	if got < 3 {
		t.Errorf("ticked %d times in 55ms at 10ms interval, want at least 3", got)
	}

	after := svc.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if svc.calls.Load() != after {
		t.Error("reconciler kept ticking after Stop")
	}
}

func TestReconcilerSurvivesTickErrors(t *testing.T) {
	svc := &countingTicker{err: errors.New("store down")}
	r := NewSessionReconciler(svc, 5*time.Millisecond, zerolog.Nop())

	r.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	r.Stop()

	if svc.calls.Load() < 2 {
		t.Errorf("reconciler stopped retrying after an error: %d calls", svc.calls.Load())
	}
}

func TestReconcilerStartIsIdempotent(t *testing.T) {
	svc := &countingTicker{}
	r := NewSessionReconciler(svc, time.Hour, zerolog.Nop())

	r.Start(context.Background())
	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	// Only the one immediate pass from the single running loop; a second
	// loop would have doubled it.
	if got := svc.calls.Load(); got > 1 {
		t.Errorf("ticks = %d, want at most 1", got)
	}
}

func TestReconcilerStopWithoutStart(t *testing.T) {
	r := NewSessionReconciler(&countingTicker{}, time.Second, zerolog.Nop())
	r.Stop() // must not panic or hang
}

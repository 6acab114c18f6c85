package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type sessionTicker interface {
	Tick(ctx context.Context) (int64, error)
}

// SessionReconciler owns the periodic session status tick. Every interval
// it runs one reconciliation pass; a pass that is still running when the
// next interval fires is not stacked, the slow pass simply absorbs the
// missed ones because each tick converges the whole table.
type SessionReconciler struct {
	svc      sessionTicker
	interval time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewSessionReconciler creates a new SessionReconciler.
func NewSessionReconciler(svc sessionTicker, interval time.Duration, log zerolog.Logger) *SessionReconciler {
	if interval <= 0 {
		interval = time.Second
	}
	return &SessionReconciler{
		svc:      svc,
		interval: interval,
		log:      log.With().Str("component", "session_reconciler").Logger(),
	}
}

// Start launches the tick loop in its own goroutine. Calling Start on a
// running reconciler is a no-op.
func (r *SessionReconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.running = true

	go r.loop(ctx)
	r.log.Info().Dur("interval", r.interval).Msg("session reconciler started")
}

func (r *SessionReconciler) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// One pass up front so a restart repairs stale statuses immediately
	// instead of waiting out the first interval.
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs a single pass. Transient store errors are logged and left for
// the next interval; the reconciler itself never dies.
func (r *SessionReconciler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.svc.Tick(ctx); err != nil {
		r.log.Error().Err(err).Msg("reconciliation pass failed")
	}
}

// Stop cancels the loop and waits for the in-flight pass to finish.
func (r *SessionReconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.running = false
	r.mu.Unlock()

	cancel()
	<-done
	r.log.Info().Msg("session reconciler stopped")
}

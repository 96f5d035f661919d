// internal/app/system/workers/oauthstatecleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/teamhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// StateCleaner deletes expired OAuth states. *oauthstate.Store satisfies it.
type StateCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// OAuthStateCleanup is a background worker that purges expired OAuth
// states. The TTL index does the same eventually; this keeps the
// collection small between TTL monitor passes.
type OAuthStateCleanup struct {
	states   StateCleaner
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOAuthStateCleanup creates a new cleanup worker that runs every interval.
func NewOAuthStateCleanup(states StateCleaner, logger *zap.Logger, interval time.Duration) *OAuthStateCleanup {
	return &OAuthStateCleanup{
		states:   states,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (w *OAuthStateCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("oauth state cleanup worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call more than once.
func (w *OAuthStateCleanup) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("oauth state cleanup worker stopped")
	})
}

func (w *OAuthStateCleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.cleanup()
		}
	}
}

func (w *OAuthStateCleanup) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Medium())
	defer cancel()

	count, err := w.states.CleanupExpired(ctx)
	if err != nil {
		w.log.Error("failed to clean up expired oauth states", zap.Error(err))
		return
	}

	if count > 0 {
		w.log.Debug("cleaned up expired oauth states", zap.Int64("count", count))
	}
}

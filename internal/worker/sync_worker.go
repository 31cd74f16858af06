package worker

import (
	"context"
	"log/slog"
	"time"

	"rocinante/internal/service"
)

type Syncer interface {
	Refresh(ctx context.Context) ([]service.SkipDiagnostic, error)
}

// SyncWorker re-pulls open orders from the external API on a fixed
// interval so the staging store stays warm between advancement runs.
type SyncWorker struct {
	sync     Syncer
	interval time.Duration
}

func NewSyncWorker(sync Syncer, interval time.Duration) *SyncWorker {
	return &SyncWorker{sync: sync, interval: interval}
}

func (w *SyncWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		slog.Info("sync worker disabled")
		return
	}

	slog.Info("starting sync worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync worker stopped")
			return
		case <-ticker.C:
			skipped, err := w.sync.Refresh(ctx)
			if err != nil {
				slog.Error("periodic sync failed", "error", err)
				continue
			}
			for _, skip := range skipped {
				slog.Warn("order skipped during periodic sync", "orderNumber", skip.OrderNumber, "reason", skip.Reason)
			}
		}
	}
}

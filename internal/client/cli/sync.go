package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/models"
)

func (a *App) sync(ctx context.Context) {
	res, err := a.syncer.PerformFullSync(ctx)
	if err != nil {
		a.log.Error(ctx, "sync failed", "error", err)
		return
	}
	a.printResult(res)
}

func (a *App) printResult(res *models.SyncResult) {
	if res.Deferred {
		fmt.Fprintln(a.out, "Sync deferred: server unreachable, changes stay queued")
		return
	}
	if !res.Success {
		fmt.Fprintf(a.out, "Sync failed: %s\n", res.Error)
		return
	}

	fmt.Fprintf(a.out, "Sync finished: uploaded %d/%d, downloaded %d (%d new, %d updated)\n",
		res.Upload.Succeeded, res.Upload.Total, res.Download.Total, res.Download.New, res.Download.Updated)

	for _, item := range res.Upload.FailedItems {
		fmt.Fprintf(a.out, "  upload failed permanently: %s %s %s: %s\n",
			item.Operation, item.EntityType, item.EntityID, item.Error)
	}
	for _, c := range res.Download.Conflicts {
		fmt.Fprintf(a.out, "  conflict: %s %s %s resolved %s (local %d, server %d)\n",
			c.ConflictType, c.EntityType, c.EntityID, c.Resolution, c.LocalTimestamp, c.ServerTimestamp)
	}
}

func (a *App) status(ctx context.Context) {
	pending, err := a.syncer.PendingCount(ctx)
	if err != nil {
		a.log.Error(ctx, "error counting pending changes", "error", err)
		return
	}
	fmt.Fprintf(a.out, "Status: %s, mode: %s, pending changes: %d\n", a.syncer.Status(), a.Mode, pending)
}

// watch runs sync cycles on a fixed interval and streams status transitions
// until the context is cancelled or the interval loop is interrupted with
// Ctrl+C. Cycles are skipped while offline; the reconnect sync started by
// the connectivity watcher covers the catch-up.
func (a *App) watch(ctx context.Context) {
	fmt.Fprintf(a.out, "Watching: syncing every %s while online (Ctrl+C to stop)\n", a.config.SyncInterval)

	statuses, cancel := a.syncer.SubscribeStatus()
	defer cancel()

	ticker := time.NewTicker(a.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case s := <-statuses:
			fmt.Fprintf(a.out, "status: %s\n", s)

		case <-ticker.C:
			if a.Mode != ModeOnline {
				continue
			}
			if res, err := a.syncer.PerformFullSync(ctx); err != nil {
				a.log.Error(ctx, "periodic sync failed", "error", err)
			} else if !res.Deferred {
				a.printResult(res)
			}

		case <-ctx.Done():
			return
		}
	}
}

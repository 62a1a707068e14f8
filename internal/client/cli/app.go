package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/config"
	"github.com/chronie/homemoney-sync/internal/client/db"
	"github.com/chronie/homemoney-sync/internal/client/remote"
	"github.com/chronie/homemoney-sync/internal/client/services"
	"github.com/chronie/homemoney-sync/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config  *config.Config
	store   *db.Store
	client  remote.Client
	records *services.RecordService
	syncer  *services.SyncService
	log     logging.Logger
	Mode    Mode
	reader  *bufio.Reader
	out     io.Writer
}

func NewApp(c *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}

	ctx := context.Background()

	store, err := db.Open(ctx, c.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	apiClient := remote.NewHTTPClient(remote.HTTPClientOpts{
		BaseURL:        c.ServerEndpointAddr,
		Token:          c.AuthToken,
		RequestTimeout: c.RequestTimeout,
		Logger:         log,
	})

	rs := services.NewRecordService(store, log)
	ss := services.NewSyncService(store, apiClient, services.SyncConfig{
		BatchSize:     c.BatchSize,
		MaxRetries:    c.MaxRetries,
		UploadWorkers: c.UploadWorkers,
		CycleTimeout:  c.SyncTimeout,
	}, log)

	return &App{
		config:  c,
		store:   store,
		client:  apiClient,
		records: rs,
		syncer:  ss,
		log:     log,
		Mode:    ModeOffline,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// setMode records a connectivity transition. Coming back online kicks off a
// sync so queued offline work drains without waiting for the user.
func (a *App) setMode(ctx context.Context, mode Mode) {
	if a.Mode == mode {
		return
	}
	a.Mode = mode
	a.log.Info(ctx, "connectivity changed", "mode", mode)

	if mode == ModeOnline {
		go func() {
			if _, err := a.syncer.PerformFullSync(context.Background()); err != nil {
				a.log.Error(ctx, "sync after reconnect failed", "error", err)
			}
		}()
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

func (a *App) Close() {
	_ = a.client.Close()
	_ = a.store.Close()
}

// StartOnlineStatusWatcher probes server reachability every interval and
// flips the app between online and offline mode.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.client.Ping(probeCtx)
			cancel()

			if err != nil {
				a.setMode(ctx, ModeOffline)
			} else {
				a.setMode(ctx, ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

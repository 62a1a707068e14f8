package metadata

import (
	"context"
	"fmt"
	"strconv"
)

// lastSyncKey stores the sync watermark: the epoch-millis timestamp below
// which all remote changes are known to be incorporated locally.
const lastSyncKey = "last_sync_time"

// GetLastSync returns the watermark and whether one has ever been recorded.
func GetLastSync(ctx context.Context, r Repository) (int64, bool, error) {
	raw, err := r.Get(ctx, lastSyncKey)
	if err != nil {
		return 0, false, err
	}
	if raw == nil {
		return 0, false, nil
	}
	ts, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt last-sync watermark %q: %w", raw, err)
	}
	return ts, true, nil
}

// SetLastSync advances (or rewrites) the watermark.
func SetLastSync(ctx context.Context, r Repository, ts int64) error {
	return r.Set(ctx, lastSyncKey, []byte(strconv.FormatInt(ts, 10)))
}

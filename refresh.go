package apiclient

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/shopfront-dev/apiclient/internal/singleflight"
)

const refreshKey = "token-refresh"

// refreshCoordinator ensures at most one token refresh runs at a time. Every
// 401 observed while a refresh is pending waits on that same refresh.
type refreshCoordinator struct {
	group   *singleflight.Group[string]
	refresh func(context.Context) (string, error)
	metrics *MetricsCollector
	logger  zerolog.Logger
}

func newRefreshCoordinator(refresh func(context.Context) (string, error), metrics *MetricsCollector, logger zerolog.Logger) *refreshCoordinator {
	return &refreshCoordinator{
		group:   singleflight.New[string](),
		refresh: refresh,
		metrics: metrics,
		logger:  logger,
	}
}

// Refresh returns the new token, or "" when the refresh failed, returned no
// token, or ctx ended before it completed.
func (rc *refreshCoordinator) Refresh(ctx context.Context) string {
	token, err, shared := rc.group.Do(ctx, refreshKey, rc.refresh)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case token == "":
		outcome = "empty"
	}
	if !shared {
		rc.metrics.RecordTokenRefresh(outcome)
	}

	ev := rc.logger.Debug()
	if err != nil {
		ev = rc.logger.Warn().Err(err)
	}
	ev.Bool("shared", shared).Str("outcome", outcome).Msg("token refresh finished")

	if err != nil {
		return ""
	}
	return token
}

// Refreshing reports whether a refresh is in flight.
func (rc *refreshCoordinator) Refreshing() bool {
	return rc.group.InFlight(refreshKey)
}

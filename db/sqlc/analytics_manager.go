package sqlc

import (
	"context"
	"net"

	"github.com/sqlc-dev/pqtype"
)

// AnalyticsManager counts game lifecycle events per server address.
type AnalyticsManager struct {
	queries     Querier
	serverIpNet pqtype.Inet
}

func NewAnalyticsManager(queries Querier, ipNet net.IPNet) *AnalyticsManager {
	return &AnalyticsManager{
		queries:     queries,
		serverIpNet: pqtype.Inet{IPNet: ipNet, Valid: true},
	}
}

func (a *AnalyticsManager) IncrementGamesCreatedCount(ctx context.Context) error {
	return a.queries.IncrementGamesCreatedCount(ctx, a.serverIpNet)
}

func (a *AnalyticsManager) IncrementGamesCompletedCount(ctx context.Context) error {
	return a.queries.IncrementGamesCompletedCount(ctx, a.serverIpNet)
}

func (a *AnalyticsManager) GetGamesCreatedCount(ctx context.Context) (int64, error) {
	return a.queries.GetGamesCreatedCount(ctx, a.serverIpNet)
}

func (a *AnalyticsManager) GetGamesCompletedCount(ctx context.Context) (int64, error) {
	return a.queries.GetGamesCompletedCount(ctx, a.serverIpNet)
}

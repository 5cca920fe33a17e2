package sqlc

import (
	"context"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Querier interface {
	GetGamesCompletedCount(ctx context.Context, serverIp pqtype.Inet) (int64, error)
	GetGamesCreatedCount(ctx context.Context, serverIp pqtype.Inet) (int64, error)
	GetRecord(ctx context.Context, address uuid.UUID) (Record, error)
	IncrementGamesCompletedCount(ctx context.Context, serverIp pqtype.Inet) error
	IncrementGamesCreatedCount(ctx context.Context, serverIp pqtype.Inet) error
	UpsertRecord(ctx context.Context, arg UpsertRecordParams) error
}

var _ Querier = (*Queries)(nil)

package sqlc

import (
	"context"

	"github.com/sqlc-dev/pqtype"
)

const getGamesCompletedCount = `-- name: GetGamesCompletedCount :one
SELECT games_completed_count FROM analytics
WHERE server_ip = $1
`

func (q *Queries) GetGamesCompletedCount(ctx context.Context, serverIp pqtype.Inet) (int64, error) {
	row := q.db.QueryRowContext(ctx, getGamesCompletedCount, serverIp)
	var games_completed_count int64
	err := row.Scan(&games_completed_count)
	return games_completed_count, err
}

const getGamesCreatedCount = `-- name: GetGamesCreatedCount :one
SELECT games_created_count FROM analytics
WHERE server_ip = $1
`

func (q *Queries) GetGamesCreatedCount(ctx context.Context, serverIp pqtype.Inet) (int64, error) {
	row := q.db.QueryRowContext(ctx, getGamesCreatedCount, serverIp)
	var games_created_count int64
	err := row.Scan(&games_created_count)
	return games_created_count, err
}

const incrementGamesCompletedCount = `-- name: IncrementGamesCompletedCount :exec
INSERT INTO analytics (server_ip, games_completed_count)
VALUES ($1, 1)
ON CONFLICT (server_ip) DO UPDATE
SET games_completed_count = analytics.games_completed_count + 1
`

func (q *Queries) IncrementGamesCompletedCount(ctx context.Context, serverIp pqtype.Inet) error {
	_, err := q.db.ExecContext(ctx, incrementGamesCompletedCount, serverIp)
	return err
}

const incrementGamesCreatedCount = `-- name: IncrementGamesCreatedCount :exec
INSERT INTO analytics (server_ip, games_created_count)
VALUES ($1, 1)
ON CONFLICT (server_ip) DO UPDATE
SET games_created_count = analytics.games_created_count + 1
`

func (q *Queries) IncrementGamesCreatedCount(ctx context.Context, serverIp pqtype.Inet) error {
	_, err := q.db.ExecContext(ctx, incrementGamesCreatedCount, serverIp)
	return err
}

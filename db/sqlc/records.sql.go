package sqlc

import (
	"context"

	"github.com/google/uuid"
)

const getRecord = `-- name: GetRecord :one
SELECT address, kind, data FROM records
WHERE address = $1
`

func (q *Queries) GetRecord(ctx context.Context, address uuid.UUID) (Record, error) {
	row := q.db.QueryRowContext(ctx, getRecord, address)
	var i Record
	err := row.Scan(&i.Address, &i.Kind, &i.Data)
	return i, err
}

const upsertRecord = `-- name: UpsertRecord :exec
INSERT INTO records (address, kind, data, updated_at)
VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
ON CONFLICT (address) DO UPDATE
SET kind = excluded.kind, data = excluded.data, updated_at = excluded.updated_at
`

type UpsertRecordParams struct {
	Address uuid.UUID
	Kind    string
	Data    []byte
}

func (q *Queries) UpsertRecord(ctx context.Context, arg UpsertRecordParams) error {
	_, err := q.db.ExecContext(ctx, upsertRecord, arg.Address, arg.Kind, arg.Data)
	return err
}

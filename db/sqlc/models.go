package sqlc

import (
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Analytic struct {
	ServerIp            pqtype.Inet
	GamesCreatedCount   int64
	GamesCompletedCount int64
}

type Record struct {
	Address uuid.UUID
	Kind    string
	Data    []byte
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/saeidalz13/battleship-escrow/db/sqlc"
	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

// RecordStore keeps records in the records table of a postgres or sqlite
// database. Every Update runs in one SQL transaction.
type RecordStore struct {
	db *sql.DB
	q  *sqlc.Queries
}

var _ ledger.Store = (*RecordStore)(nil)

func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db, q: sqlc.New(db)}
}

func (rs *RecordStore) Get(ctx context.Context, addr ledger.Address) (ledger.Record, error) {
	return getRecord(ctx, rs.q, addr)
}

func (rs *RecordStore) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := rs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}

	if err := fn(&recordTx{ctx: ctx, q: rs.q.WithTx(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Println("failed to roll back record tx:", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}
	return nil
}

func (rs *RecordStore) Close() error {
	return rs.db.Close()
}

type recordTx struct {
	ctx context.Context
	q   *sqlc.Queries
}

func (tx *recordTx) Get(addr ledger.Address) (ledger.Record, error) {
	return getRecord(tx.ctx, tx.q, addr)
}

func (tx *recordTx) Put(addr ledger.Address, rec ledger.Record) error {
	return tx.q.UpsertRecord(tx.ctx, sqlc.UpsertRecordParams{
		Address: uuid.UUID(addr),
		Kind:    string(rec.Kind),
		Data:    rec.Data,
	})
}

func getRecord(ctx context.Context, q sqlc.Querier, addr ledger.Address) (ledger.Record, error) {
	row, err := q.GetRecord(ctx, uuid.UUID(addr))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Record{}, cerr.ErrRecordNotFound
		}
		return ledger.Record{}, err
	}
	return ledger.Record{Kind: ledger.Kind(row.Kind), Data: row.Data}, nil
}

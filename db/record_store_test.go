package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

var (
	selectRecord = regexp.QuoteMeta("SELECT address, kind, data FROM records")
	upsertRecord = regexp.QuoteMeta("INSERT INTO records (address, kind, data, updated_at)")
)

func newMockStore(t *testing.T) (*RecordStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewRecordStore(conn), mock
}

func TestRecordStoreGet(t *testing.T) {
	store, mock := newMockStore(t)
	addr, _ := ledger.GameAddress(2)

	rows := sqlmock.NewRows([]string{"address", "kind", "data"}).
		AddRow(uuid.UUID(addr).String(), "game", []byte{1, 2, 3})
	mock.ExpectQuery(selectRecord).WithArgs(uuid.UUID(addr)).WillReturnRows(rows)

	rec, err := store.Get(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindGame, rec.Kind)
	assert.Equal(t, []byte{1, 2, 3}, rec.Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStoreGetMissing(t *testing.T) {
	store, mock := newMockStore(t)
	addr, _ := ledger.GameAddress(2)

	mock.ExpectQuery(selectRecord).WithArgs(uuid.UUID(addr)).WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), addr)
	assert.ErrorIs(t, err, cerr.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStoreUpdateCommits(t *testing.T) {
	store, mock := newMockStore(t)
	game, _ := ledger.GameAddress(2)
	board, _ := ledger.BoardAddress(2, ledger.NewIdentity())

	mock.ExpectBegin()
	mock.ExpectExec(upsertRecord).WithArgs(uuid.UUID(game), "game", []byte{1}).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsertRecord).WithArgs(uuid.UUID(board), "player", []byte{2}).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), func(tx ledger.Tx) error {
		if err := tx.Put(game, ledger.Record{Kind: ledger.KindGame, Data: []byte{1}}); err != nil {
			return err
		}
		return tx.Put(board, ledger.Record{Kind: ledger.KindPlayer, Data: []byte{2}})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStoreUpdateRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	game, _ := ledger.GameAddress(2)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(upsertRecord).WithArgs(uuid.UUID(game), "game", []byte{1}).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := store.Update(context.Background(), func(tx ledger.Tx) error {
		if err := tx.Put(game, ledger.Record{Kind: ledger.KindGame, Data: []byte{1}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package api

import (
	"context"
	"errors"
	"net"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeidalz13/battleship-escrow/db/sqlc"
	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	mb "github.com/saeidalz13/battleship-escrow/models/battleship"
	"github.com/saeidalz13/battleship-escrow/models/delegation"
	"github.com/saeidalz13/battleship-escrow/models/escrow"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

const testFaucet uint64 = 1_000_000

type testEnv struct {
	ctx       context.Context
	p         *Processor
	registry  *delegation.Registry
	authority ledger.Identity
	p1        ledger.Identity
	p2        ledger.Identity
}

func newTestEnvWithStore(t *testing.T, store ledger.Store, feeBps uint16, optFns ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		ctx:       context.Background(),
		registry:  delegation.NewRegistry(store, time.Hour),
		authority: ledger.NewIdentity(),
		p1:        ledger.NewIdentity(),
		p2:        ledger.NewIdentity(),
	}
	env.p = NewProcessor(env.registry, escrow.NewVault(testFaucet), optFns...)

	_, err := env.p.InitConfig(env.ctx, DurableSigner(env.authority), env.authority, 10, feeBps)
	require.NoError(t, err)
	return env
}

func newTestEnv(t *testing.T, feeBps uint16) *testEnv {
	return newTestEnvWithStore(t, ledger.NewMemoryStore(), feeBps)
}

// startGame creates and joins a match and hides one 1x1 ship per player:
// player 1 at (0,0), player 2 at (1,1).
func (env *testEnv) startGame(t *testing.T, gameId uint64, wager uint64) {
	t.Helper()
	_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), gameId, 4, wager)
	require.NoError(t, err)
	_, err = env.p.JoinGame(env.ctx, DurableSigner(env.p2), gameId)
	require.NoError(t, err)

	_, err = env.p.HideShips(env.ctx, DurableSigner(env.p1), gameId, []mb.Ship{mb.NewShip(0, 0, 0, 0)})
	require.NoError(t, err)
	_, err = env.p.HideShips(env.ctx, DurableSigner(env.p2), gameId, []mb.Ship{mb.NewShip(1, 1, 1, 1)})
	require.NoError(t, err)
}

func (env *testEnv) wallet(t *testing.T, owner ledger.Identity) uint64 {
	t.Helper()
	balance, err := env.p.GetWalletBalance(env.ctx, owner)
	require.NoError(t, err)
	return balance
}

func (env *testEnv) held(t *testing.T) uint64 {
	t.Helper()
	balance, err := env.p.GetVaultBalance(env.ctx)
	require.NoError(t, err)
	return balance
}

// noMatchLocks reports whether every match mutex has been released.
func (env *testEnv) noMatchLocks() bool {
	env.p.mu.Lock()
	defer env.p.mu.Unlock()
	return len(env.p.matchLocks) == 0
}

func (env *testEnv) move(signer Signer, gameId uint64, opponent ledger.Identity, x, y uint8) error {
	_, err := env.p.MakeMove(env.ctx, signer, gameId, opponent, mb.NewCoordinates(x, y))
	return err
}

func TestCreateGameBelowMinimumWager(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, wager := range []uint64{1, 50_000, mb.MinimumWager - 1} {
		_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, wager)
		assert.ErrorIs(t, err, cerr.ErrMinimumWager)

		_, err = env.p.GetGame(env.ctx, 2)
		assert.ErrorIs(t, err, cerr.ErrGameNotFound)
		_, err = env.p.GetBoard(env.ctx, DurableSigner(env.p1), 2, env.p1)
		assert.Error(t, err)
	}
	assert.Equal(t, testFaucet, env.wallet(t, env.p1))
}

func TestCreateGameValidation(t *testing.T) {
	env := newTestEnv(t, 0)
	signer := DurableSigner(env.p1)

	_, err := env.p.CreateGame(env.ctx, signer, 2, 1, 0)
	assert.ErrorIs(t, err, cerr.ErrInvalidGridSize)
	_, err = env.p.CreateGame(env.ctx, signer, 2, 11, 0)
	assert.ErrorIs(t, err, cerr.ErrInvalidGridSize)

	_, err = env.p.CreateGame(env.ctx, signer, 2, 4, 0)
	require.NoError(t, err)
	_, err = env.p.CreateGame(env.ctx, DurableSigner(env.p2), 2, 4, 0)
	assert.ErrorIs(t, err, cerr.ErrGameAlreadyExists)

	_, err = env.p.CreateGame(env.ctx, signer, 3, 4, testFaucet+1)
	assert.ErrorIs(t, err, cerr.ErrInsufficientFunds)
	_, err = env.p.GetGame(env.ctx, 3)
	assert.ErrorIs(t, err, cerr.ErrGameNotFound)
}

func TestCreateGameRequiresConfig(t *testing.T) {
	p := NewProcessor(delegation.NewRegistry(ledger.NewMemoryStore(), time.Hour), escrow.NewVault(0))
	_, err := p.CreateGame(context.Background(), DurableSigner(ledger.NewIdentity()), 2, 4, 0)
	assert.ErrorIs(t, err, cerr.ErrConfigNotInitialized)
}

func TestInitConfigAuthority(t *testing.T) {
	env := newTestEnv(t, 0)

	_, err := env.p.InitConfig(env.ctx, DurableSigner(env.p1), env.p1, 10, 0)
	assert.ErrorIs(t, err, cerr.ErrUnauthorized)
	_, err = env.p.InitConfig(env.ctx, DurableSigner(env.authority), env.authority, 10, 10_001)
	assert.ErrorIs(t, err, cerr.ErrInvalidFee)

	cfg, err := env.p.InitConfig(env.ctx, DurableSigner(env.authority), env.p1, 6, 100)
	require.NoError(t, err)
	assert.Equal(t, env.p1, cfg.Authority)

	stored, err := env.p.GetConfig(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, stored)
	vault, _ := ledger.VaultAddress()
	assert.Equal(t, vault, stored.Vault)
}

func TestJoinGame(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, mb.MinimumWager)
	require.NoError(t, err)

	_, err = env.p.JoinGame(env.ctx, DurableSigner(env.p1), 2)
	assert.ErrorIs(t, err, cerr.ErrCannotJoinSelfGame)

	game, err := env.p.JoinGame(env.ctx, DurableSigner(env.p2), 2)
	require.NoError(t, err)
	assert.Equal(t, mb.StatusInProgress, game.Status.Kind)
	assert.Equal(t, env.p2, *game.Player2)

	_, err = env.p.JoinGame(env.ctx, DurableSigner(ledger.NewIdentity()), 2)
	assert.ErrorIs(t, err, cerr.ErrGameFull)

	assert.Equal(t, 2*mb.MinimumWager, env.held(t))
	assert.Equal(t, testFaucet-mb.MinimumWager, env.wallet(t, env.p2))

	_, err = env.p.JoinGame(env.ctx, DurableSigner(env.p2), 99)
	assert.ErrorIs(t, err, cerr.ErrGameNotFound)
}

func TestHideShips(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, 0)
	require.NoError(t, err)

	_, err = env.p.HideShips(env.ctx, DurableSigner(env.p1), 2, []mb.Ship{mb.NewShip(0, 0, 0, 0)})
	assert.ErrorIs(t, err, cerr.ErrGameNotStarted)

	_, err = env.p.JoinGame(env.ctx, DurableSigner(env.p2), 2)
	require.NoError(t, err)

	_, err = env.p.HideShips(env.ctx, DurableSigner(ledger.NewIdentity()), 2, []mb.Ship{mb.NewShip(0, 0, 0, 0)})
	assert.ErrorIs(t, err, cerr.ErrNotAParticipant)

	// grid 4 leaves rows 0 and 1 to each player
	_, err = env.p.HideShips(env.ctx, DurableSigner(env.p1), 2, []mb.Ship{mb.NewShip(0, 0, 0, 2)})
	assert.ErrorIs(t, err, cerr.ErrInvalidShipPlacement)

	first := []mb.Ship{mb.NewShip(0, 0, 1, 0)}
	_, err = env.p.HideShips(env.ctx, DurableSigner(env.p1), 2, first)
	require.NoError(t, err)
	_, err = env.p.HideShips(env.ctx, DurableSigner(env.p1), 2, []mb.Ship{mb.NewShip(3, 1, 3, 1)})
	assert.ErrorIs(t, err, cerr.ErrShipsAlreadyPlaced)

	board, err := env.p.GetBoard(env.ctx, DurableSigner(env.p1), 2, env.p1)
	require.NoError(t, err)
	assert.Equal(t, first, board.Ships)

	// hidden from the opponent while the game runs
	seen, err := env.p.GetBoard(env.ctx, DurableSigner(env.p2), 2, env.p1)
	require.NoError(t, err)
	assert.Empty(t, seen.Ships)
}

func TestTurnAlternation(t *testing.T) {
	env := newTestEnv(t, 0)
	// even id: player 1 moves first
	env.startGame(t, 2, 0)
	p1, p2, stranger := DurableSigner(env.p1), DurableSigner(env.p2), DurableSigner(ledger.NewIdentity())

	assert.ErrorIs(t, env.move(p2, 2, env.p1, 3, 1), cerr.ErrInvalidTurn)
	assert.ErrorIs(t, env.move(stranger, 2, env.p1, 3, 1), cerr.ErrInvalidTurn)
	assert.ErrorIs(t, env.move(p1, 2, stranger.Identity, 3, 1), cerr.ErrInvalidOpponent)
	require.NoError(t, env.move(p1, 2, env.p2, 3, 1))

	assert.ErrorIs(t, env.move(p1, 2, env.p2, 2, 1), cerr.ErrInvalidTurn)
	assert.ErrorIs(t, env.move(stranger, 2, env.p2, 2, 1), cerr.ErrInvalidTurn)
	require.NoError(t, env.move(p2, 2, env.p1, 3, 1))

	require.NoError(t, env.move(p1, 2, env.p2, 2, 1))
}

func TestOddIdLetsJoinerMoveFirst(t *testing.T) {
	env := newTestEnv(t, 0)
	env.startGame(t, 3, 0)

	assert.ErrorIs(t, env.move(DurableSigner(env.p1), 3, env.p2, 3, 1), cerr.ErrInvalidTurn)
	require.NoError(t, env.move(DurableSigner(env.p2), 3, env.p1, 3, 1))
}

func TestMakeMoveErrors(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, env.move(DurableSigner(env.p1), 2, env.p2, 0, 0), cerr.ErrGameNotStarted)

	_, err = env.p.JoinGame(env.ctx, DurableSigner(env.p2), 2)
	require.NoError(t, err)
	assert.ErrorIs(t, env.move(DurableSigner(env.p1), 2, env.p2, 0, 0), cerr.ErrShipsNotPlaced)

	_, err = env.p.HideShips(env.ctx, DurableSigner(env.p1), 2, []mb.Ship{mb.NewShip(0, 0, 0, 0)})
	require.NoError(t, err)
	_, err = env.p.HideShips(env.ctx, DurableSigner(env.p2), 2, []mb.Ship{mb.NewShip(1, 1, 1, 1)})
	require.NoError(t, err)

	assert.ErrorIs(t, env.move(DurableSigner(env.p1), 2, env.p2, 4, 0), cerr.ErrAttackOutOfBounds)
	assert.ErrorIs(t, env.move(DurableSigner(env.p1), 2, env.p2, 0, 2), cerr.ErrAttackOutOfBounds)
}

func TestDuplicateAttackIsRecordedOnce(t *testing.T) {
	env := newTestEnv(t, 0)
	env.startGame(t, 2, 0)
	p1, p2 := DurableSigner(env.p1), DurableSigner(env.p2)

	require.NoError(t, env.move(p1, 2, env.p2, 3, 0))
	require.NoError(t, env.move(p2, 2, env.p1, 3, 0))

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, env.move(p1, 2, env.p2, 3, 0), cerr.ErrCellAlreadyAttacked)
	}

	board, err := env.p.GetBoard(env.ctx, p2, 2, env.p2)
	require.NoError(t, err)
	count := 0
	for _, c := range board.Attacks {
		if c == mb.NewCoordinates(3, 0) {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// the failed retries did not consume the turn
	require.NoError(t, env.move(p1, 2, env.p2, 2, 0))
}

func TestRevealWinner(t *testing.T) {
	env := newTestEnv(t, 0)
	env.startGame(t, 2, 0)
	p1, p2 := DurableSigner(env.p1), DurableSigner(env.p2)

	_, err := env.p.RevealWinner(env.ctx, p1, 2)
	assert.ErrorIs(t, err, cerr.ErrNotAllShipsSunk)

	require.NoError(t, env.move(p1, 2, env.p2, 3, 1))
	require.NoError(t, env.move(p2, 2, env.p1, 0, 0))

	// anyone may settle
	game, err := env.p.RevealWinner(env.ctx, DurableSigner(ledger.NewIdentity()), 2)
	require.NoError(t, err)
	assert.Equal(t, mb.StatusCompleted, game.Status.Kind)
	assert.Equal(t, env.p2, *game.Status.Winner)
	assert.Equal(t, []mb.Ship{mb.NewShip(0, 0, 0, 0)}, game.RevealedShipsPlayer1)
	assert.Equal(t, []mb.Ship{mb.NewShip(1, 1, 1, 1)}, game.RevealedShipsPlayer2)

	_, err = env.p.RevealWinner(env.ctx, p1, 2)
	assert.ErrorIs(t, err, cerr.ErrGameNotInProgress)
	assert.ErrorIs(t, env.move(p1, 2, env.p2, 1, 1), cerr.ErrGameNotInProgress)

	// layouts are public once the game is over
	seen, err := env.p.GetBoard(env.ctx, p1, 2, env.p2)
	require.NoError(t, err)
	assert.Equal(t, []mb.Ship{mb.NewShip(1, 1, 1, 1)}, seen.Ships)
}

func TestEndToEnd(t *testing.T) {
	env := newTestEnv(t, 0)
	p1, p2 := DurableSigner(env.p1), DurableSigner(env.p2)

	game, err := env.p.CreateGame(env.ctx, p1, 2, 4, 0)
	require.NoError(t, err)
	assert.True(t, game.NextMovePlayer1)
	_, err = env.p.JoinGame(env.ctx, p2, 2)
	require.NoError(t, err)
	_, err = env.p.HideShips(env.ctx, p1, 2, []mb.Ship{mb.NewShip(0, 0, 0, 0)})
	require.NoError(t, err)
	_, err = env.p.HideShips(env.ctx, p2, 2, []mb.Ship{mb.NewShip(1, 1, 1, 1)})
	require.NoError(t, err)

	require.NoError(t, env.move(p1, 2, env.p2, 2, 0))
	require.NoError(t, env.move(p2, 2, env.p1, 0, 1))

	res, err := env.p.MakeMove(env.ctx, p1, 2, env.p2, mb.NewCoordinates(1, 1))
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.True(t, res.FleetSunk)

	// player 2 sinks player 1 afterwards; the earlier sink still decides
	require.NoError(t, env.move(p2, 2, env.p1, 0, 0))

	game, err = env.p.RevealWinner(env.ctx, p2, 2)
	require.NoError(t, err)
	assert.Equal(t, mb.GameStatus{Kind: mb.StatusCompleted, Winner: &env.p1}, game.Status)
}

func TestSettlementPaysWinnerAndAuthority(t *testing.T) {
	env := newTestEnv(t, 250)
	env.startGame(t, 2, mb.MinimumWager)

	require.NoError(t, env.move(DurableSigner(env.p1), 2, env.p2, 1, 1))
	_, err := env.p.RevealWinner(env.ctx, DurableSigner(env.p1), 2)
	require.NoError(t, err)

	// pot 200_000, fee 2.5%
	assert.Equal(t, testFaucet-mb.MinimumWager+195_000, env.wallet(t, env.p1))
	assert.Equal(t, testFaucet-mb.MinimumWager, env.wallet(t, env.p2))
	assert.Equal(t, testFaucet+5_000, env.wallet(t, env.authority))

	assert.Zero(t, env.held(t))
}

func TestForfeit(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, mb.MinimumWager)
	require.NoError(t, err)

	_, err = env.p.Forfeit(env.ctx, DurableSigner(env.p1), 2)
	assert.ErrorIs(t, err, cerr.ErrGameNotStarted)

	_, err = env.p.JoinGame(env.ctx, DurableSigner(env.p2), 2)
	require.NoError(t, err)

	game, err := env.p.Forfeit(env.ctx, DurableSigner(env.p2), 2)
	require.NoError(t, err)
	assert.Equal(t, mb.StatusForfeited, game.Status.Kind)
	assert.Equal(t, env.p1, *game.Status.Winner)
	assert.Equal(t, testFaucet+mb.MinimumWager, env.wallet(t, env.p1))

	_, err = env.p.Forfeit(env.ctx, DurableSigner(env.p1), 2)
	assert.ErrorIs(t, err, cerr.ErrGameNotInProgress)
}

func TestCancelGame(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, mb.MinimumWager)
	require.NoError(t, err)
	assert.Equal(t, testFaucet-mb.MinimumWager, env.wallet(t, env.p1))

	_, err = env.p.CancelGame(env.ctx, DurableSigner(env.p2), 2)
	assert.ErrorIs(t, err, cerr.ErrNotAParticipant)

	game, err := env.p.CancelGame(env.ctx, DurableSigner(env.p1), 2)
	require.NoError(t, err)
	assert.Equal(t, mb.StatusCancelled, game.Status.Kind)
	assert.Equal(t, testFaucet, env.wallet(t, env.p1))

	_, err = env.p.JoinGame(env.ctx, DurableSigner(env.p2), 2)
	assert.ErrorIs(t, err, cerr.ErrGameNotJoinable)
}

var errCommit = errors.New("commit failed")

// failingCommitStore runs every update and then refuses to commit it.
type failingCommitStore struct {
	*ledger.MemoryStore
	fail bool
}

func (s *failingCommitStore) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.MemoryStore.Update(ctx, func(tx ledger.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		if s.fail {
			return errCommit
		}
		return nil
	})
}

func TestDepositRollsBackWhenCommitFails(t *testing.T) {
	store := &failingCommitStore{MemoryStore: ledger.NewMemoryStore()}
	env := newTestEnvWithStore(t, store, 0)
	store.fail = true

	_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, mb.MinimumWager)
	assert.ErrorIs(t, err, errCommit)
	assert.Equal(t, testFaucet, env.wallet(t, env.p1))

	assert.Zero(t, env.held(t))

	store.fail = false
	_, err = env.p.GetGame(env.ctx, 2)
	assert.ErrorIs(t, err, cerr.ErrGameNotFound)
}

func TestPayoutRollsBackWhenCommitFails(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, env *testEnv)
		run   func(env *testEnv) (*mb.Game, error)

		// wallet gains over the balances before the instruction
		p1Gain        uint64
		authorityGain uint64
	}{
		{
			name: "reveal winner",
			setup: func(t *testing.T, env *testEnv) {
				env.startGame(t, 2, mb.MinimumWager)
				require.NoError(t, env.move(DurableSigner(env.p1), 2, env.p2, 1, 1))
			},
			run: func(env *testEnv) (*mb.Game, error) {
				return env.p.RevealWinner(env.ctx, DurableSigner(env.p2), 2)
			},
			p1Gain:        195_000,
			authorityGain: 5_000,
		},
		{
			name: "forfeit",
			setup: func(t *testing.T, env *testEnv) {
				env.startGame(t, 2, mb.MinimumWager)
			},
			run: func(env *testEnv) (*mb.Game, error) {
				return env.p.Forfeit(env.ctx, DurableSigner(env.p2), 2)
			},
			p1Gain:        195_000,
			authorityGain: 5_000,
		},
		{
			name: "cancel",
			setup: func(t *testing.T, env *testEnv) {
				_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, mb.MinimumWager)
				require.NoError(t, err)
			},
			run: func(env *testEnv) (*mb.Game, error) {
				return env.p.CancelGame(env.ctx, DurableSigner(env.p1), 2)
			},
			p1Gain: mb.MinimumWager,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := &failingCommitStore{MemoryStore: ledger.NewMemoryStore()}
			env := newTestEnvWithStore(t, store, 250)

			// another game keeps its stake in the vault throughout
			_, err := env.p.CreateGame(env.ctx, DurableSigner(ledger.NewIdentity()), 3, 4, mb.MinimumWager)
			require.NoError(t, err)
			test.setup(t, env)

			before, err := env.p.GetGame(env.ctx, 2)
			require.NoError(t, err)
			p1, p2, authority, held := env.wallet(t, env.p1), env.wallet(t, env.p2), env.wallet(t, env.authority), env.held(t)

			store.fail = true
			_, err = test.run(env)
			assert.ErrorIs(t, err, errCommit)

			after, err := env.p.GetGame(env.ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, p1, env.wallet(t, env.p1))
			assert.Equal(t, p2, env.wallet(t, env.p2))
			assert.Equal(t, authority, env.wallet(t, env.authority))
			assert.Equal(t, held, env.held(t))

			// the retry pays out exactly once
			store.fail = false
			_, err = test.run(env)
			require.NoError(t, err)
			_, err = test.run(env)
			assert.Error(t, err)

			assert.Equal(t, p1+test.p1Gain, env.wallet(t, env.p1))
			assert.Equal(t, p2, env.wallet(t, env.p2))
			assert.Equal(t, authority+test.authorityGain, env.wallet(t, env.authority))
			assert.Equal(t, mb.MinimumWager, env.held(t))
			assert.True(t, env.noMatchLocks())
		})
	}
}

func TestConcurrentMovesAreSerialized(t *testing.T) {
	env := newTestEnv(t, 0)
	env.startGame(t, 2, 0)

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.move(DurableSigner(env.p1), 2, env.p2, uint8(i), 0)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, cerr.ErrInvalidTurn)
	}
	assert.Equal(t, 1, succeeded)

	board, err := env.p.GetBoard(env.ctx, DurableSigner(env.p2), 2, env.p2)
	require.NoError(t, err)
	assert.Len(t, board.Attacks, 1)
	assert.True(t, env.noMatchLocks())
}

func TestDelegatedGame(t *testing.T) {
	env := newTestEnv(t, 0)
	executor := ledger.NewIdentity()
	p1, p2 := DurableSigner(env.p1), DurableSigner(env.p2)
	p1Fast, p2Fast := ExecutorSigner(env.p1, executor), ExecutorSigner(env.p2, executor)

	_, err := env.p.CreateGame(env.ctx, p1, 2, 4, 0)
	require.NoError(t, err)
	_, err = env.p.JoinGame(env.ctx, p2, 2)
	require.NoError(t, err)

	status, err := env.p.DelegateBoard(env.ctx, p1, 2, executor, nil)
	require.NoError(t, err)
	assert.Equal(t, delegation.StateDelegated, status.State)
	assert.Equal(t, executor, *status.Executor)
	again, err := env.p.DelegateBoard(env.ctx, p2, 2, executor, nil)
	require.NoError(t, err)
	assert.Equal(t, status.State, again.State)

	_, err = env.p.DelegateBoard(env.ctx, p1, 2, ledger.NewIdentity(), nil)
	assert.ErrorIs(t, err, cerr.ErrExecutorMismatch)
	_, err = env.p.DelegateBoard(env.ctx, p1Fast, 2, executor, nil)
	assert.ErrorIs(t, err, cerr.ErrRecordNotDelegated)

	// the durable layer can no longer write the boards
	_, err = env.p.HideShips(env.ctx, p1, 2, []mb.Ship{mb.NewShip(0, 0, 0, 0)})
	assert.ErrorIs(t, err, cerr.ErrRecordDelegated)

	_, err = env.p.HideShips(env.ctx, p1Fast, 2, []mb.Ship{mb.NewShip(0, 0, 0, 0)})
	require.NoError(t, err)
	_, err = env.p.HideShips(env.ctx, p2Fast, 2, []mb.Ship{mb.NewShip(1, 1, 1, 1)})
	require.NoError(t, err)

	// reads are restricted to the owner through the executor
	_, err = env.p.GetBoard(env.ctx, p2, 2, env.p1)
	assert.ErrorIs(t, err, cerr.ErrPermissionDenied)
	_, err = env.p.GetBoard(env.ctx, p1, 2, env.p1)
	assert.ErrorIs(t, err, cerr.ErrRecordDelegated)
	own, err := env.p.GetBoard(env.ctx, p1Fast, 2, env.p1)
	require.NoError(t, err)
	assert.Len(t, own.Ships, 1)

	assert.ErrorIs(t, env.move(p1, 2, env.p2, 3, 1), cerr.ErrRecordDelegated)
	require.NoError(t, env.move(p1Fast, 2, env.p2, 3, 1))

	_, err = env.p.CommitBoards(env.ctx, p1, 2)
	assert.ErrorIs(t, err, cerr.ErrNotAllShipsSunk)

	require.NoError(t, env.move(p2Fast, 2, env.p1, 3, 1))
	res, err := env.p.MakeMove(env.ctx, p1Fast, 2, env.p2, mb.NewCoordinates(1, 1))
	require.NoError(t, err)
	assert.True(t, res.FleetSunk)

	_, err = env.p.RevealWinner(env.ctx, p1, 2)
	assert.ErrorIs(t, err, cerr.ErrBoardDelegated)

	_, err = env.p.CommitBoards(env.ctx, DurableSigner(ledger.NewIdentity()), 2)
	assert.ErrorIs(t, err, cerr.ErrNotAParticipant)
	game, err := env.p.CommitBoards(env.ctx, p2, 2)
	require.NoError(t, err)
	assert.Equal(t, mb.StatusAwaitingWinnerReveal, game.Status.Kind)
	assert.Equal(t, delegation.StateCommitPending, env.p.GetBoardStatus(2, env.p1).State)

	assert.ErrorIs(t, env.move(p2Fast, 2, env.p1, 0, 0), cerr.ErrGameNotInProgress)
	_, err = env.p.RevealWinner(env.ctx, p1, 2)
	assert.ErrorIs(t, err, cerr.ErrCommitPending)

	require.NoError(t, env.registry.Flush(env.ctx))
	assert.Equal(t, delegation.StateDurable, env.p.GetBoardStatus(2, env.p1).State)
	assert.Equal(t, delegation.StateDurable, env.p.GetBoardStatus(2, env.p2).State)

	game, err = env.p.RevealWinner(env.ctx, p2, 2)
	require.NoError(t, err)
	assert.Equal(t, env.p1, *game.Status.Winner)
	assert.Equal(t, []mb.Ship{mb.NewShip(1, 1, 1, 1)}, game.RevealedShipsPlayer2)

	// the committed board carries every attack made on the fast layer
	board, err := env.p.GetBoard(env.ctx, p1, 2, env.p2)
	require.NoError(t, err)
	assert.Equal(t, []mb.Coordinates{mb.NewCoordinates(3, 1), mb.NewCoordinates(1, 1)}, board.Attacks)
}

func TestForfeitCommitsDelegatedBoards(t *testing.T) {
	env := newTestEnv(t, 0)
	executor := ledger.NewIdentity()
	env.startGame(t, 2, mb.MinimumWager)

	_, err := env.p.DelegateBoard(env.ctx, DurableSigner(env.p1), 2, executor, nil)
	require.NoError(t, err)

	_, err = env.p.Forfeit(env.ctx, DurableSigner(env.p1), 2)
	require.NoError(t, err)
	assert.Equal(t, delegation.StateCommitPending, env.p.GetBoardStatus(2, env.p1).State)
	assert.Equal(t, delegation.StateCommitPending, env.p.GetBoardStatus(2, env.p2).State)

	require.NoError(t, env.registry.Flush(env.ctx))
	assert.Equal(t, delegation.StateDurable, env.p.GetBoardStatus(2, env.p1).State)
	assert.Equal(t, delegation.StateDurable, env.p.GetBoardStatus(2, env.p2).State)
	assert.Equal(t, testFaucet+mb.MinimumWager, env.wallet(t, env.p2))

	_, err = env.p.DelegateBoard(env.ctx, DurableSigner(env.p2), 2, executor, nil)
	assert.ErrorIs(t, err, cerr.ErrGameNotInProgress)
}

func TestDelegationCoversBothBoards(t *testing.T) {
	e1, e2 := ledger.NewIdentity(), ledger.NewIdentity()

	tests := []struct {
		name string
		run  func(t *testing.T, env *testEnv)
	}{
		{
			name: "one player delegates the whole match",
			run: func(t *testing.T, env *testEnv) {
				env.startGame(t, 2, 0)
				_, err := env.p.DelegateBoard(env.ctx, DurableSigner(env.p1), 2, e1, nil)
				require.NoError(t, err)

				for _, owner := range []ledger.Identity{env.p1, env.p2} {
					status := env.p.GetBoardStatus(2, owner)
					assert.Equal(t, delegation.StateDelegated, status.State)
					assert.Equal(t, e1, *status.Executor)
				}
				assert.ErrorIs(t, env.move(DurableSigner(env.p1), 2, env.p2, 3, 1), cerr.ErrRecordDelegated)
				require.NoError(t, env.move(ExecutorSigner(env.p1, e1), 2, env.p2, 3, 1))
				require.NoError(t, env.move(ExecutorSigner(env.p2, e1), 2, env.p1, 3, 1))
				require.NoError(t, env.move(ExecutorSigner(env.p1, e1), 2, env.p2, 1, 1))
			},
		},
		{
			name: "second executor is rejected",
			run: func(t *testing.T, env *testEnv) {
				env.startGame(t, 2, 0)
				_, err := env.p.DelegateBoard(env.ctx, DurableSigner(env.p1), 2, e1, nil)
				require.NoError(t, err)
				_, err = env.p.DelegateBoard(env.ctx, DurableSigner(env.p2), 2, e2, nil)
				assert.ErrorIs(t, err, cerr.ErrExecutorMismatch)

				assert.Equal(t, e1, *env.p.GetBoardStatus(2, env.p2).Executor)
				require.NoError(t, env.move(ExecutorSigner(env.p1, e1), 2, env.p2, 3, 1))
				assert.Error(t, env.move(ExecutorSigner(env.p2, e2), 2, env.p1, 3, 1))
				require.NoError(t, env.move(ExecutorSigner(env.p2, e1), 2, env.p1, 3, 1))
			},
		},
		{
			name: "repeat with the same executor is a no-op",
			run: func(t *testing.T, env *testEnv) {
				env.startGame(t, 2, 0)
				for _, owner := range []ledger.Identity{env.p1, env.p2, env.p1} {
					status, err := env.p.DelegateBoard(env.ctx, DurableSigner(owner), 2, e1, nil)
					require.NoError(t, err)
					assert.Equal(t, delegation.StateDelegated, status.State)
				}
				require.NoError(t, env.move(ExecutorSigner(env.p1, e1), 2, env.p2, 3, 1))
			},
		},
		{
			name: "game not joined yet",
			run: func(t *testing.T, env *testEnv) {
				_, err := env.p.CreateGame(env.ctx, DurableSigner(env.p1), 2, 4, 0)
				require.NoError(t, err)
				_, err = env.p.DelegateBoard(env.ctx, DurableSigner(env.p1), 2, e1, nil)
				assert.ErrorIs(t, err, cerr.ErrGameNotStarted)
				assert.Equal(t, delegation.StateDurable, env.p.GetBoardStatus(2, env.p1).State)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.run(t, newTestEnv(t, 0))
		})
	}
}

func TestCommitAllWritesBackWorkingCopies(t *testing.T) {
	store := ledger.NewMemoryStore()
	env := newTestEnvWithStore(t, store, 0)
	executor := ledger.NewIdentity()
	env.startGame(t, 2, 0)

	_, err := env.p.DelegateBoard(env.ctx, DurableSigner(env.p2), 2, executor, nil)
	require.NoError(t, err)
	require.NoError(t, env.move(ExecutorSigner(env.p1, executor), 2, env.p2, 3, 1))

	require.NoError(t, env.registry.CommitAll(env.ctx))
	assert.Equal(t, delegation.StateDurable, env.p.GetBoardStatus(2, env.p2).State)

	// a fresh registry over the same store sees the move
	restarted := NewProcessor(delegation.NewRegistry(store, time.Hour), escrow.NewVault(testFaucet))
	board, err := restarted.GetBoard(env.ctx, DurableSigner(env.p2), 2, env.p2)
	require.NoError(t, err)
	assert.Equal(t, []mb.Coordinates{mb.NewCoordinates(3, 1)}, board.Attacks)
}

func TestAnalyticsCountsLifecycle(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	ipNet := net.IPNet{IP: net.IPv4(127, 0, 0, 1), Mask: net.CIDRMask(32, 32)}
	analytics := sqlc.NewAnalyticsManager(sqlc.New(conn), ipNet)
	env := newTestEnvWithStore(t, ledger.NewMemoryStore(), 0, WithAnalytics(analytics))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analytics (server_ip, games_created_count)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analytics (server_ip, games_completed_count)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	env.startGame(t, 2, 0)
	_, err = env.p.Forfeit(env.ctx, DurableSigner(env.p2), 2)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

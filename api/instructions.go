package api

import (
	"context"
	"errors"
	"log"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	mb "github.com/saeidalz13/battleship-escrow/models/battleship"
	"github.com/saeidalz13/battleship-escrow/models/delegation"
	"github.com/saeidalz13/battleship-escrow/models/escrow"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

// InitConfig creates the config on first use. Afterwards only the current
// authority may change it, including handing authority to someone else.
func (p *Processor) InitConfig(ctx context.Context, signer Signer, authority ledger.Identity, maxGridSize uint8, feeBps uint16) (*mb.Config, error) {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	var cfg *mb.Config
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		current, err := loadConfig(tx)
		switch {
		case err == nil:
			if current.Authority != signer.Identity {
				return cerr.ErrUnauthorized
			}
		case !errors.Is(err, cerr.ErrConfigNotInitialized):
			return err
		}

		vault, _ := ledger.VaultAddress()
		_, nonce := ledger.ConfigAddress()
		cfg, err = mb.NewConfig(authority, vault, maxGridSize, feeBps, nonce)
		if err != nil {
			return err
		}
		return saveConfig(tx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Processor) CreateGame(ctx context.Context, signer Signer, gameId uint64, gridSize uint8, wager uint64) (*mb.Game, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	var game *mb.Game
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}

		gameAddr, gameNonce := ledger.GameAddress(gameId)
		if _, err := tx.Get(gameAddr); err == nil {
			return cerr.ErrGameAlreadyExists
		} else if !errors.Is(err, cerr.ErrRecordNotFound) {
			return err
		}

		if !mb.IsGridSizeValid(gridSize, cfg.MaxGridSize) {
			return cerr.ErrInvalidGridSize
		}

		game, err = mb.NewGame(gameId, gridSize, signer.Identity, wager, gameNonce)
		if err != nil {
			return err
		}
		_, boardNonce := ledger.BoardAddress(gameId, signer.Identity)
		board := mb.NewPlayerBoard(gameId, signer.Identity, boardNonce)

		if err := saveGame(tx, game); err != nil {
			return err
		}
		if err := saveBoard(tx, board); err != nil {
			return err
		}

		// the deposit rolls back with the records if the commit fails
		return p.vault.Deposit(tx, signer.Identity, wager)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("game %d created by %s\n", gameId, signer.Identity)
	p.countCreated(ctx)
	return game, nil
}

func (p *Processor) JoinGame(ctx context.Context, signer Signer, gameId uint64) (*mb.Game, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	var game *mb.Game
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		var err error
		game, err = loadGame(tx, gameId)
		if err != nil {
			return err
		}
		if err := game.Join(signer.Identity); err != nil {
			return err
		}

		_, boardNonce := ledger.BoardAddress(gameId, signer.Identity)
		if err := saveBoard(tx, mb.NewPlayerBoard(gameId, signer.Identity, boardNonce)); err != nil {
			return err
		}
		if err := saveGame(tx, game); err != nil {
			return err
		}

		return p.vault.Deposit(tx, signer.Identity, game.Wager)
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

func (p *Processor) HideShips(ctx context.Context, signer Signer, gameId uint64, ships []mb.Ship) (*mb.PlayerBoard, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	var board *mb.PlayerBoard
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		game, err := loadGame(tx, gameId)
		if err != nil {
			return err
		}
		if !game.HasStarted() {
			return cerr.ErrGameNotStarted
		}
		if game.Status.Kind != mb.StatusInProgress {
			return cerr.ErrGameNotInProgress
		}
		if !game.IsParticipant(signer.Identity) {
			return cerr.ErrNotAParticipant
		}

		board, err = loadBoard(tx, gameId, signer.Identity)
		if err != nil {
			return err
		}
		if err := board.PlaceShips(game.GridSize, ships); err != nil {
			return err
		}
		return saveBoard(tx, board)
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// DelegateBoard hands both boards of a started game to executor so that
// every move of the match runs on the same layer. Each board stays readable
// by its owner only until the game concludes. Delegating again to the
// executor already holding the boards is a no-op.
func (p *Processor) DelegateBoard(ctx context.Context, signer Signer, gameId uint64, executor ledger.Identity, validator *ledger.Identity) (delegation.Status, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	if signer.Executor != nil {
		return delegation.Status{}, cerr.ErrRecordNotDelegated
	}

	gameAddr, _ := ledger.GameAddress(gameId)
	rec, err := p.registry.Get(ctx, gameAddr, nil)
	if err != nil {
		if errors.Is(err, cerr.ErrRecordNotFound) {
			return delegation.Status{}, cerr.ErrGameNotExists(gameId)
		}
		return delegation.Status{}, err
	}
	game, err := mb.DecodeGame(rec.Data)
	if err != nil {
		return delegation.Status{}, err
	}
	if !game.IsParticipant(signer.Identity) {
		return delegation.Status{}, cerr.ErrNotAParticipant
	}
	if !game.HasStarted() {
		return delegation.Status{}, cerr.ErrGameNotStarted
	}
	if game.Status.Kind != mb.StatusInProgress {
		return delegation.Status{}, cerr.ErrGameNotInProgress
	}

	ownAddr, _ := ledger.BoardAddress(gameId, signer.Identity)
	switch status := p.registry.Status(ownAddr); status.State {
	case delegation.StateDelegated:
		if *status.Executor != executor {
			return delegation.Status{}, cerr.ErrExecutorMismatch
		}
		return status, nil
	case delegation.StateCommitPending:
		return delegation.Status{}, cerr.ErrCommitPending
	}

	addrs := boardAddresses(game)
	if err := p.registry.Delegate(ctx, executor, validator, addrs...); err != nil {
		return delegation.Status{}, err
	}
	p.registry.SetPermission(addrs[0], []ledger.Identity{game.Player1})
	p.registry.SetPermission(addrs[1], []ledger.Identity{*game.Player2})

	log.Printf("boards of game %d delegated to %s by %s\n", gameId, executor, signer.Identity)
	return p.registry.Status(ownAddr), nil
}

type MoveResult struct {
	Game      *mb.Game
	Defender  ledger.Identity
	Target    mb.Coordinates
	Hit       bool
	FleetSunk bool
}

func (p *Processor) MakeMove(ctx context.Context, signer Signer, gameId uint64, opponent ledger.Identity, target mb.Coordinates) (*MoveResult, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	var res *MoveResult
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		game, err := loadGame(tx, gameId)
		if err != nil {
			return err
		}
		if !game.HasStarted() {
			return cerr.ErrGameNotStarted
		}
		if game.Status.Kind != mb.StatusInProgress {
			return cerr.ErrGameNotInProgress
		}

		board1, err := loadBoard(tx, gameId, game.Player1)
		if err != nil {
			return err
		}
		board2, err := loadBoard(tx, gameId, *game.Player2)
		if err != nil {
			return err
		}
		if !board1.HasShips() || !board2.HasShips() {
			return cerr.ErrShipsNotPlaced
		}

		mover, err := game.EntitledMover(board1, board2)
		if err != nil {
			return err
		}
		if signer.Identity != mover {
			return cerr.ErrInvalidTurn
		}
		defender, err := game.Opponent(signer.Identity)
		if err != nil {
			return err
		}
		if opponent != defender {
			return cerr.ErrInvalidOpponent
		}

		targetBoard := board2
		if defender == game.Player1 {
			targetBoard = board1
		}
		if err := targetBoard.ReceiveAttack(game.GridSize, target); err != nil {
			return err
		}
		if err := saveBoard(tx, targetBoard); err != nil {
			return err
		}

		res = &MoveResult{
			Game:      game,
			Defender:  defender,
			Target:    target,
			Hit:       targetBoard.Occupies(target),
			FleetSunk: targetBoard.IsFleetSunk(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// readBoardForCommit reads a board where its authoritative copy lives.
func (p *Processor) readBoardForCommit(tx ledger.Tx, gameId uint64, owner ledger.Identity) (*mb.PlayerBoard, error) {
	addr, _ := ledger.BoardAddress(gameId, owner)
	rec, delegated, err := p.registry.WorkingCopy(addr)
	if err != nil {
		return nil, err
	}
	if delegated {
		return mb.DecodeBoard(rec.Data)
	}
	return loadBoard(tx, gameId, owner)
}

// CommitBoards ends the fast phase once a fleet is sunk: both boards are
// scheduled for commit and the game waits for the winner to be revealed.
func (p *Processor) CommitBoards(ctx context.Context, signer Signer, gameId uint64) (*mb.Game, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	var game *mb.Game
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		var err error
		game, err = loadGame(tx, gameId)
		if err != nil {
			return err
		}
		if !game.IsParticipant(signer.Identity) {
			return cerr.ErrNotAParticipant
		}
		if game.Status.Kind != mb.StatusInProgress {
			return cerr.ErrGameNotInProgress
		}

		board1, err := p.readBoardForCommit(tx, gameId, game.Player1)
		if err != nil {
			return err
		}
		board2, err := p.readBoardForCommit(tx, gameId, *game.Player2)
		if err != nil {
			return err
		}
		if _, err := game.Winner(board1, board2); err != nil {
			return err
		}

		if err := game.AwaitReveal(); err != nil {
			return err
		}
		return saveGame(tx, game)
	})
	if err != nil {
		return nil, err
	}

	p.releaseBoards(game)
	return game, nil
}

func (p *Processor) requireDurableBoards(game *mb.Game) error {
	for _, addr := range boardAddresses(game) {
		switch p.registry.Status(addr).State {
		case delegation.StateDelegated:
			return cerr.ErrBoardDelegated
		case delegation.StateCommitPending:
			return cerr.ErrCommitPending
		}
	}
	return nil
}

// RevealWinner settles a finished game. Boards must be back on the durable
// layer so that the outcome is decided from committed data.
func (p *Processor) RevealWinner(ctx context.Context, signer Signer, gameId uint64) (*mb.Game, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	var game *mb.Game
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		game, err = loadGame(tx, gameId)
		if err != nil {
			return err
		}
		if !game.HasStarted() {
			return cerr.ErrGameNotStarted
		}
		if game.Status.Kind != mb.StatusInProgress && game.Status.Kind != mb.StatusAwaitingWinnerReveal {
			return cerr.ErrGameNotInProgress
		}
		if err := p.requireDurableBoards(game); err != nil {
			return err
		}

		board1, err := loadBoard(tx, gameId, game.Player1)
		if err != nil {
			return err
		}
		board2, err := loadBoard(tx, gameId, *game.Player2)
		if err != nil {
			return err
		}
		winner, err := game.Winner(board1, board2)
		if err != nil {
			return err
		}

		if err := game.Complete(winner, board1.Ships, board2.Ships); err != nil {
			return err
		}
		if err := saveGame(tx, game); err != nil {
			return err
		}
		return p.settle(tx, game, cfg, winner)
	})
	if err != nil {
		return nil, err
	}

	p.releaseBoards(game)
	log.Printf("game %d won by %s\n", gameId, game.Status.Winner)
	p.countCompleted(ctx)
	return game, nil
}

// Forfeit concedes the game; the opponent takes the pot.
func (p *Processor) Forfeit(ctx context.Context, signer Signer, gameId uint64) (*mb.Game, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	var game *mb.Game
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		game, err = loadGame(tx, gameId)
		if err != nil {
			return err
		}
		winner, err := game.Forfeit(signer.Identity)
		if err != nil {
			return err
		}
		if err := saveGame(tx, game); err != nil {
			return err
		}
		return p.settle(tx, game, cfg, winner)
	})
	if err != nil {
		return nil, err
	}

	p.releaseBoards(game)
	log.Printf("game %d forfeited by %s\n", gameId, signer.Identity)
	p.countCompleted(ctx)
	return game, nil
}

// CancelGame closes a game nobody joined and refunds the creator.
func (p *Processor) CancelGame(ctx context.Context, signer Signer, gameId uint64) (*mb.Game, error) {
	unlock := p.lockMatch(gameId)
	defer unlock()

	var game *mb.Game
	err := p.registry.Update(ctx, signer.Executor, func(tx ledger.Tx) error {
		var err error
		game, err = loadGame(tx, gameId)
		if err != nil {
			return err
		}
		if err := game.Cancel(signer.Identity); err != nil {
			return err
		}
		if err := saveGame(tx, game); err != nil {
			return err
		}
		return escrow.Refund(tx, p.vault, game.Player1, game.Wager)
	})
	if err != nil {
		return nil, err
	}

	p.releaseBoards(game)
	return game, nil
}

// settle pays the pot on the instruction's own transaction, so the payout
// and the terminal status commit together or not at all.
func (p *Processor) settle(tx ledger.Tx, game *mb.Game, cfg *mb.Config, winner ledger.Identity) error {
	pot, err := game.Pot()
	if err != nil {
		return err
	}
	if err := escrow.Settle(tx, p.vault, pot, cfg.FeeBps, winner, cfg.Authority); err != nil {
		log.Printf("failed to settle game %d: %v\n", game.Id, err)
		return err
	}
	return nil
}

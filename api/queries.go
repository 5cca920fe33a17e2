package api

import (
	"context"
	"errors"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	mb "github.com/saeidalz13/battleship-escrow/models/battleship"
	"github.com/saeidalz13/battleship-escrow/models/delegation"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

func (p *Processor) GetConfig(ctx context.Context) (*mb.Config, error) {
	addr, _ := ledger.ConfigAddress()
	rec, err := p.registry.Get(ctx, addr, nil)
	if err != nil {
		if errors.Is(err, cerr.ErrRecordNotFound) {
			return nil, cerr.ErrConfigNotInitialized
		}
		return nil, err
	}
	return mb.DecodeConfig(rec.Data)
}

func (p *Processor) GetGame(ctx context.Context, gameId uint64) (*mb.Game, error) {
	addr, _ := ledger.GameAddress(gameId)
	rec, err := p.registry.Get(ctx, addr, nil)
	if err != nil {
		if errors.Is(err, cerr.ErrRecordNotFound) {
			return nil, cerr.ErrGameNotExists(gameId)
		}
		return nil, err
	}
	return mb.DecodeGame(rec.Data)
}

// GetBoard reads a board on behalf of viewer. Restricted boards are only
// readable by their members, and ship layouts stay hidden from anyone but
// the owner until the game is over.
func (p *Processor) GetBoard(ctx context.Context, viewer Signer, gameId uint64, owner ledger.Identity) (*mb.PlayerBoard, error) {
	addr, _ := ledger.BoardAddress(gameId, owner)
	if !p.registry.CanRead(addr, viewer.Identity) {
		return nil, cerr.ErrPermissionDenied
	}

	game, err := p.GetGame(ctx, gameId)
	if err != nil {
		return nil, err
	}

	rec, err := p.registry.Get(ctx, addr, viewer.Executor)
	if err != nil {
		if errors.Is(err, cerr.ErrRecordNotFound) {
			return nil, cerr.ErrBoardNotExists(gameId, owner.String())
		}
		return nil, err
	}
	board, err := mb.DecodeBoard(rec.Data)
	if err != nil {
		return nil, err
	}

	if viewer.Identity != owner && !game.Status.IsTerminal() {
		board.Ships = []mb.Ship{}
	}
	return board, nil
}

func (p *Processor) GetBoardStatus(gameId uint64, owner ledger.Identity) delegation.Status {
	addr, _ := ledger.BoardAddress(gameId, owner)
	return p.registry.Status(addr)
}

// durableReader reads records the way external queries do.
type durableReader struct {
	ctx      context.Context
	registry *delegation.Registry
}

func (r durableReader) Get(addr ledger.Address) (ledger.Record, error) {
	return r.registry.Get(r.ctx, addr, nil)
}

func (p *Processor) GetWalletBalance(ctx context.Context, owner ledger.Identity) (uint64, error) {
	return p.vault.WalletBalance(durableReader{ctx: ctx, registry: p.registry}, owner)
}

// GetVaultBalance is the total escrowed for every running game.
func (p *Processor) GetVaultBalance(ctx context.Context) (uint64, error) {
	return p.vault.Balance(durableReader{ctx: ctx, registry: p.registry})
}

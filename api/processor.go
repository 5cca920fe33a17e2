package api

import (
	"context"
	"errors"
	"log"
	"sync"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	mb "github.com/saeidalz13/battleship-escrow/models/battleship"
	"github.com/saeidalz13/battleship-escrow/models/delegation"
	"github.com/saeidalz13/battleship-escrow/models/escrow"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

// Signer is the identity an instruction is submitted by. A nil Executor
// submits on the durable layer.
type Signer struct {
	Identity ledger.Identity
	Executor *ledger.Identity
}

func DurableSigner(id ledger.Identity) Signer {
	return Signer{Identity: id}
}

func ExecutorSigner(id, executor ledger.Identity) Signer {
	return Signer{Identity: id, Executor: &executor}
}

// Analytics receives lifecycle counters. Failures are logged, never fatal.
type Analytics interface {
	IncrementGamesCreatedCount(ctx context.Context) error
	IncrementGamesCompletedCount(ctx context.Context) error
}

// Processor executes instructions. Every instruction is one atomic
// read-modify-write; instructions on the same match are serialized.
type Processor struct {
	registry  *delegation.Registry
	vault     *escrow.Vault
	analytics Analytics

	matchLocks map[uint64]*matchLock
	configMu   sync.Mutex
	mu         sync.Mutex
}

// matchLock lives in matchLocks while anyone holds or waits for it.
type matchLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Processor) error

func NewProcessor(registry *delegation.Registry, vault *escrow.Vault, optFuncs ...Option) *Processor {
	p := &Processor{
		registry:   registry,
		vault:      vault,
		matchLocks: make(map[uint64]*matchLock, 10),
	}
	for _, opt := range optFuncs {
		if err := opt(p); err != nil {
			panic(err)
		}
	}
	return p
}

func WithAnalytics(a Analytics) Option {
	return func(p *Processor) error {
		if a == nil {
			return errors.New("analytics must not be nil")
		}
		p.analytics = a
		return nil
	}
}

func (p *Processor) Registry() *delegation.Registry {
	return p.registry
}

// lockMatch returns the unlock func of the match's mutex. The mutex is
// dropped from matchLocks once its last holder unlocks.
func (p *Processor) lockMatch(gameId uint64) func() {
	p.mu.Lock()
	l, prs := p.matchLocks[gameId]
	if !prs {
		l = &matchLock{}
		p.matchLocks[gameId] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.matchLocks, gameId)
		}
		p.mu.Unlock()
	}
}

func (p *Processor) countCreated(ctx context.Context) {
	if p.analytics == nil {
		return
	}
	if err := p.analytics.IncrementGamesCreatedCount(ctx); err != nil {
		log.Println(err)
	}
}

func (p *Processor) countCompleted(ctx context.Context) {
	if p.analytics == nil {
		return
	}
	if err := p.analytics.IncrementGamesCompletedCount(ctx); err != nil {
		log.Println(err)
	}
}

func loadConfig(tx ledger.Tx) (*mb.Config, error) {
	addr, _ := ledger.ConfigAddress()
	rec, err := tx.Get(addr)
	if err != nil {
		if errors.Is(err, cerr.ErrRecordNotFound) {
			return nil, cerr.ErrConfigNotInitialized
		}
		return nil, err
	}
	return mb.DecodeConfig(rec.Data)
}

func saveConfig(tx ledger.Tx, cfg *mb.Config) error {
	addr, _ := ledger.ConfigAddress()
	return tx.Put(addr, ledger.Record{Kind: ledger.KindConfig, Data: mb.EncodeConfig(cfg)})
}

func loadGame(tx ledger.Tx, gameId uint64) (*mb.Game, error) {
	addr, _ := ledger.GameAddress(gameId)
	rec, err := tx.Get(addr)
	if err != nil {
		if errors.Is(err, cerr.ErrRecordNotFound) {
			return nil, cerr.ErrGameNotExists(gameId)
		}
		return nil, err
	}
	return mb.DecodeGame(rec.Data)
}

func saveGame(tx ledger.Tx, g *mb.Game) error {
	addr, _ := ledger.GameAddress(g.Id)
	return tx.Put(addr, ledger.Record{Kind: ledger.KindGame, Data: mb.EncodeGame(g)})
}

func loadBoard(tx ledger.Tx, gameId uint64, owner ledger.Identity) (*mb.PlayerBoard, error) {
	addr, _ := ledger.BoardAddress(gameId, owner)
	rec, err := tx.Get(addr)
	if err != nil {
		if errors.Is(err, cerr.ErrRecordNotFound) {
			return nil, cerr.ErrBoardNotExists(gameId, owner.String())
		}
		return nil, err
	}
	return mb.DecodeBoard(rec.Data)
}

func saveBoard(tx ledger.Tx, b *mb.PlayerBoard) error {
	addr, _ := ledger.BoardAddress(b.GameId, b.Owner)
	return tx.Put(addr, ledger.Record{Kind: ledger.KindPlayer, Data: mb.EncodeBoard(b)})
}

func boardAddresses(g *mb.Game) []ledger.Address {
	addrs := make([]ledger.Address, 0, 2)
	addr, _ := ledger.BoardAddress(g.Id, g.Player1)
	addrs = append(addrs, addr)
	if g.Player2 != nil {
		addr, _ = ledger.BoardAddress(g.Id, *g.Player2)
		addrs = append(addrs, addr)
	}
	return addrs
}

// releaseBoards lifts read restrictions on both boards and schedules their
// working copies to be written back.
func (p *Processor) releaseBoards(g *mb.Game) {
	addrs := boardAddresses(g)
	for _, addr := range addrs {
		p.registry.SetPermission(addr, nil)
	}
	p.registry.CommitAndUndelegate(addrs...)
}

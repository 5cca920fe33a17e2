package ledger

import (
	"context"
	"sync"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
)

// Record is the raw content held at an address.
type Record struct {
	Kind Kind
	Data []byte
}

func (r Record) clone() Record {
	data := make([]byte, len(r.Data))
	copy(data, r.Data)
	return Record{Kind: r.Kind, Data: data}
}

// Tx is the view an instruction gets over the durable layer. Writes staged
// through Put become visible to other callers only if the whole Update
// succeeds.
type Tx interface {
	Get(addr Address) (Record, error)
	Put(addr Address, rec Record) error
}

// Store is the durable, address-keyed record layer.
type Store interface {
	Get(ctx context.Context, addr Address) (Record, error)
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

type MemoryStore struct {
	records map[Address]Record
	mu      sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[Address]Record, 16),
	}
}

func (ms *MemoryStore) Get(ctx context.Context, addr Address) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, prs := ms.records[addr]
	if !prs {
		return Record{}, cerr.ErrRecordNotFound
	}
	return rec.clone(), nil
}

func (ms *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	tx := &memoryTx{base: ms.records, staged: make(map[Address]Record, 2)}
	if err := fn(tx); err != nil {
		return err
	}

	for addr, rec := range tx.staged {
		ms.records[addr] = rec
	}
	return nil
}

func (ms *MemoryStore) Close() error {
	return nil
}

type memoryTx struct {
	base   map[Address]Record
	staged map[Address]Record
}

func (tx *memoryTx) Get(addr Address) (Record, error) {
	if rec, prs := tx.staged[addr]; prs {
		return rec.clone(), nil
	}
	rec, prs := tx.base[addr]
	if !prs {
		return Record{}, cerr.ErrRecordNotFound
	}
	return rec.clone(), nil
}

func (tx *memoryTx) Put(addr Address, rec Record) error {
	tx.staged[addr] = rec.clone()
	return nil
}

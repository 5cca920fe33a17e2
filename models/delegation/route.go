package delegation

import (
	"context"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

// resolve decides where a submission arriving through via may touch addr.
// A nil via is a submission on the durable layer. It returns the working copy
// when the record lives with the executor.
func (r *Registry) resolve(addr ledger.Address, via *ledger.Identity, write bool) (*entry, error) {
	e, prs := r.entries[addr]
	if !prs {
		if write && via != nil {
			return nil, cerr.ErrRecordNotDelegated
		}
		return nil, nil
	}

	switch e.state {
	case StateCommitPending:
		return nil, cerr.ErrCommitPending
	case StateDelegated:
		// durable readers would only see the stale copy
		if via == nil || *via != e.executor {
			return nil, cerr.ErrRecordDelegated
		}
		return e, nil
	}
	return nil, cerr.ErrRecordDelegated
}

// Get reads addr as seen by a submission through via.
func (r *Registry) Get(ctx context.Context, addr ledger.Address, via *ledger.Identity) (ledger.Record, error) {
	r.mu.RLock()
	e, err := r.resolve(addr, via, false)
	if err != nil {
		r.mu.RUnlock()
		return ledger.Record{}, err
	}
	if e != nil {
		rec := cloneRecord(e.copy)
		r.mu.RUnlock()
		return rec, nil
	}
	r.mu.RUnlock()

	return r.store.Get(ctx, addr)
}

// Update runs fn as one atomic instruction submitted through via. Every read
// and write fn makes is routed by the record's delegation state. Writes to
// working copies apply only if the durable part of the update committed.
func (r *Registry) Update(ctx context.Context, via *ledger.Identity, fn func(tx ledger.Tx) error) error {
	rtx := &routedTx{reg: r, via: via, staged: make(map[ledger.Address]ledger.Record, 2)}

	err := r.store.Update(ctx, func(tx ledger.Tx) error {
		rtx.base = tx
		return fn(rtx)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, rec := range rtx.staged {
		if e, prs := r.entries[addr]; prs && e.state == StateDelegated {
			e.copy = rec
		}
	}
	return nil
}

type routedTx struct {
	reg    *Registry
	via    *ledger.Identity
	base   ledger.Tx
	staged map[ledger.Address]ledger.Record
}

func (tx *routedTx) Get(addr ledger.Address) (ledger.Record, error) {
	if rec, prs := tx.staged[addr]; prs {
		return cloneRecord(rec), nil
	}

	tx.reg.mu.RLock()
	e, err := tx.reg.resolve(addr, tx.via, false)
	var rec ledger.Record
	if e != nil {
		rec = cloneRecord(e.copy)
	}
	tx.reg.mu.RUnlock()

	if err != nil {
		return ledger.Record{}, err
	}
	if e != nil {
		return rec, nil
	}
	return tx.base.Get(addr)
}

func (tx *routedTx) Put(addr ledger.Address, rec ledger.Record) error {
	tx.reg.mu.RLock()
	e, err := tx.reg.resolve(addr, tx.via, true)
	tx.reg.mu.RUnlock()

	if err != nil {
		return err
	}
	if e != nil {
		tx.staged[addr] = cloneRecord(rec)
		return nil
	}
	return tx.base.Put(addr, rec)
}

func cloneRecord(rec ledger.Record) ledger.Record {
	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	return ledger.Record{Kind: rec.Kind, Data: data}
}

// WorkingCopy returns the executor's copy of a delegated record. The bool is
// false when the record lives on the durable layer.
func (r *Registry) WorkingCopy(addr ledger.Address) (ledger.Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, prs := r.entries[addr]
	if !prs {
		return ledger.Record{}, false, nil
	}
	if e.state == StateCommitPending {
		return ledger.Record{}, false, cerr.ErrCommitPending
	}
	return cloneRecord(e.copy), true, nil
}

package delegation

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

type State uint8

const (
	StateDurable State = iota
	StateDelegated
	StateCommitPending
)

func (s State) String() string {
	switch s {
	case StateDurable:
		return "durable"
	case StateDelegated:
		return "delegated"
	case StateCommitPending:
		return "commit_pending"
	default:
		return "unknown"
	}
}

// Status describes where the authoritative copy of a record lives.
type Status struct {
	State     State            `json:"state"`
	Executor  *ledger.Identity `json:"executor,omitempty"`
	Validator *ledger.Identity `json:"validator,omitempty"`
}

type entry struct {
	state     State
	executor  ledger.Identity
	validator *ledger.Identity
	// working copy held by the executor; authoritative unless Durable
	copy ledger.Record
}

// Registry tracks the delegation state and read permissions of records held
// in a durable Store. A record with no entry is Durable and unrestricted.
type Registry struct {
	store         ledger.Store
	flushInterval time.Duration

	entries     map[ledger.Address]*entry
	permissions map[ledger.Address][]ledger.Identity
	pending     []ledger.Address
	mu          sync.RWMutex

	wake chan struct{}
}

func NewRegistry(store ledger.Store, flushInterval time.Duration) *Registry {
	initMapSize := 10

	return &Registry{
		store:         store,
		flushInterval: flushInterval,
		entries:       make(map[ledger.Address]*entry, initMapSize),
		permissions:   make(map[ledger.Address][]ledger.Identity, initMapSize),
		pending:       make([]ledger.Address, 0, initMapSize),
		wake:          make(chan struct{}, 1),
	}
}

func (r *Registry) Status(addr ledger.Address) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, prs := r.entries[addr]
	if !prs {
		return Status{State: StateDurable}
	}
	executor := e.executor
	return Status{State: e.state, Executor: &executor, Validator: e.validator}
}

// Delegate hands every record in addrs to executor, or none of them. The
// executor works on copies of the current durable records, which stay stale
// until committed. Writers of addrs must be serialized by the caller; the
// store is read outside the registry lock.
func (r *Registry) Delegate(ctx context.Context, executor ledger.Identity, validator *ledger.Identity, addrs ...ledger.Address) error {
	r.mu.RLock()
	err := r.checkDurable(addrs...)
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	copies := make([]ledger.Record, len(addrs))
	for i, addr := range addrs {
		rec, err := r.store.Get(ctx, addr)
		if err != nil {
			return err
		}
		copies[i] = rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDurable(addrs...); err != nil {
		return err
	}
	for i, addr := range addrs {
		r.entries[addr] = &entry{
			state:     StateDelegated,
			executor:  executor,
			validator: validator,
			copy:      copies[i],
		}
		log.Printf("record %s delegated to %s\n", addr, executor)
	}
	return nil
}

func (r *Registry) checkDurable(addrs ...ledger.Address) error {
	for _, addr := range addrs {
		e, prs := r.entries[addr]
		if !prs {
			continue
		}
		if e.state == StateCommitPending {
			return cerr.ErrCommitPending
		}
		return cerr.ErrRecordDelegated
	}
	return nil
}

// SetPermission restricts external reads of addr to members. Passing nil
// lifts the restriction.
func (r *Registry) SetPermission(addr ledger.Address, members []ledger.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members == nil {
		delete(r.permissions, addr)
		return
	}
	r.permissions[addr] = slices.Clone(members)
}

func (r *Registry) CanRead(addr ledger.Address, viewer ledger.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, restricted := r.permissions[addr]
	return !restricted || slices.Contains(members, viewer)
}

// CommitAndUndelegate schedules the working copies of the given records to
// be written back. Records that are Durable or already pending are left as
// they are.
func (r *Registry) CommitAndUndelegate(addrs ...ledger.Address) {
	r.mu.Lock()
	queued := false
	for _, addr := range addrs {
		e, prs := r.entries[addr]
		if !prs || e.state != StateDelegated {
			continue
		}
		e.state = StateCommitPending
		r.pending = append(r.pending, addr)
		queued = true
	}
	r.mu.Unlock()

	if queued {
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
}

// Flush writes every pending working copy to the durable store. A record
// becomes Durable only after its write succeeded; failed writes stay queued.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = make([]ledger.Address, 0, len(batch))
	r.mu.Unlock()

	var errs []error
	for _, addr := range batch {
		r.mu.RLock()
		rec := r.entries[addr].copy
		r.mu.RUnlock()

		err := r.store.Update(ctx, func(tx ledger.Tx) error {
			return tx.Put(addr, rec)
		})
		if err != nil {
			log.Printf("failed to commit record %s: %v\n", addr, err)
			errs = append(errs, err)
			r.mu.Lock()
			r.pending = append(r.pending, addr)
			r.mu.Unlock()
			continue
		}

		r.mu.Lock()
		delete(r.entries, addr)
		r.mu.Unlock()
		log.Printf("record %s committed and undelegated\n", addr)
	}
	return errors.Join(errs...)
}

// CommitAll schedules every delegated record for commit and flushes. Working
// copies live in process memory, so this runs before the process exits.
func (r *Registry) CommitAll(ctx context.Context) error {
	r.mu.RLock()
	addrs := make([]ledger.Address, 0, len(r.entries))
	for addr, e := range r.entries {
		if e.state == StateDelegated {
			addrs = append(addrs, addr)
		}
	}
	r.mu.RUnlock()

	r.CommitAndUndelegate(addrs...)
	return r.Flush(ctx)
}

// Run flushes pending commits whenever some are scheduled and on every tick
// until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
		_ = r.Flush(ctx)
	}
}

package escrow

import (
	"encoding/binary"
	"errors"
	"log"

	"github.com/saeidalz13/battleship-escrow/internal"
	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

const balanceVersion uint8 = 1

// Reader is the read half of a ledger.Tx.
type Reader interface {
	Get(addr ledger.Address) (ledger.Record, error)
}

// Vault keeps wallet balances and the escrowed total as ledger records. Every
// transfer is staged on the caller's transaction, so it commits or rolls back
// together with the instruction that made it.
//
// A nonzero faucet is the balance of a wallet that has no record yet, which
// is how local runs fund new identities.
type Vault struct {
	faucet uint64
}

func NewVault(faucet uint64) *Vault {
	return &Vault{faucet: faucet}
}

func encodeBalance(amount uint64) []byte {
	out := make([]byte, 0, 9)
	out = append(out, balanceVersion)
	return binary.BigEndian.AppendUint64(out, amount)
}

func decodeBalance(kind ledger.Kind, data []byte) (uint64, error) {
	if len(data) != 9 {
		return 0, cerr.ErrCorruptRecord(string(kind), "unexpected length")
	}
	if data[0] != balanceVersion {
		return 0, cerr.ErrCorruptRecord(string(kind), "unsupported version")
	}
	return binary.BigEndian.Uint64(data[1:]), nil
}

func readBalance(r Reader, addr ledger.Address, kind ledger.Kind, missing uint64) (uint64, error) {
	rec, err := r.Get(addr)
	if err != nil {
		if errors.Is(err, cerr.ErrRecordNotFound) {
			return missing, nil
		}
		return 0, err
	}
	return decodeBalance(kind, rec.Data)
}

func putBalance(tx ledger.Tx, addr ledger.Address, kind ledger.Kind, amount uint64) error {
	return tx.Put(addr, ledger.Record{Kind: kind, Data: encodeBalance(amount)})
}

func (v *Vault) WalletBalance(r Reader, id ledger.Identity) (uint64, error) {
	addr, _ := ledger.WalletAddress(id)
	return readBalance(r, addr, ledger.KindWallet, v.faucet)
}

// Balance is the total held for every running game.
func (v *Vault) Balance(r Reader) (uint64, error) {
	addr, _ := ledger.VaultAddress()
	return readBalance(r, addr, ledger.KindVault, 0)
}

func (v *Vault) Credit(tx ledger.Tx, to ledger.Identity, amount uint64) error {
	have, err := v.WalletBalance(tx, to)
	if err != nil {
		return err
	}
	next, err := internal.CheckedAdd(have, amount)
	if err != nil {
		return err
	}
	addr, _ := ledger.WalletAddress(to)
	return putBalance(tx, addr, ledger.KindWallet, next)
}

// Deposit moves amount from a wallet into the vault.
func (v *Vault) Deposit(tx ledger.Tx, from ledger.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}

	have, err := v.WalletBalance(tx, from)
	if err != nil {
		return err
	}
	if have < amount {
		return cerr.ErrNotEnoughFunds(from.String(), have, amount)
	}
	held, err := v.Balance(tx)
	if err != nil {
		return err
	}
	nextHeld, err := internal.CheckedAdd(held, amount)
	if err != nil {
		return err
	}

	walletAddr, _ := ledger.WalletAddress(from)
	if err := putBalance(tx, walletAddr, ledger.KindWallet, have-amount); err != nil {
		return err
	}
	vaultAddr, _ := ledger.VaultAddress()
	return putBalance(tx, vaultAddr, ledger.KindVault, nextHeld)
}

// Payout moves amount from the vault into a wallet.
func (v *Vault) Payout(tx ledger.Tx, to ledger.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}

	held, err := v.Balance(tx)
	if err != nil {
		return err
	}
	if held < amount {
		log.Printf("vault holds %d, cannot pay %d to %s\n", held, amount, to)
		return cerr.ErrNotEnoughFunds("vault", held, amount)
	}
	have, err := v.WalletBalance(tx, to)
	if err != nil {
		return err
	}
	next, err := internal.CheckedAdd(have, amount)
	if err != nil {
		return err
	}

	vaultAddr, _ := ledger.VaultAddress()
	if err := putBalance(tx, vaultAddr, ledger.KindVault, held-amount); err != nil {
		return err
	}
	walletAddr, _ := ledger.WalletAddress(to)
	return putBalance(tx, walletAddr, ledger.KindWallet, next)
}

package escrow

import (
	"fmt"

	"github.com/saeidalz13/battleship-escrow/internal"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

const bpsDenominator uint64 = 10_000

// Split divides the pot between the winner and the fee collector. The
// winner's share rounds down; the collector receives the rest, so the two
// always sum to pot.
func Split(pot uint64, feeBps uint16) (winnerShare, fee uint64, err error) {
	if uint64(feeBps) > bpsDenominator {
		return 0, 0, fmt.Errorf("fee of %d bps exceeds 100%%", feeBps)
	}
	winnerShare, err = internal.CheckedMulDiv(pot, bpsDenominator-uint64(feeBps), bpsDenominator)
	if err != nil {
		return 0, 0, err
	}
	return winnerShare, pot - winnerShare, nil
}

// Settle pays out a finished game's pot on tx. Zero transfers are skipped.
func Settle(tx ledger.Tx, v *Vault, pot uint64, feeBps uint16, winner, authority ledger.Identity) error {
	winnerShare, fee, err := Split(pot, feeBps)
	if err != nil {
		return err
	}
	if winnerShare > 0 {
		if err := v.Payout(tx, winner, winnerShare); err != nil {
			return err
		}
	}
	if fee > 0 {
		if err := v.Payout(tx, authority, fee); err != nil {
			return err
		}
	}
	return nil
}

// Refund returns a deposit when a game is cancelled.
func Refund(tx ledger.Tx, v *Vault, to ledger.Identity, amount uint64) error {
	return v.Payout(tx, to, amount)
}

package battleship

import (
	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

// MaxFeeBps is 100% in basis points.
const MaxFeeBps uint16 = 10_000

// Config is the administrative record: who collects fees, where wagers are
// held, and how large a grid may be.
type Config struct {
	Authority   ledger.Identity `json:"authority"`
	Vault       ledger.Address  `json:"vault"`
	MaxGridSize uint8           `json:"max_grid_size"`
	FeeBps      uint16          `json:"fee_bps"`
	Nonce       uint8           `json:"nonce"`
}

func NewConfig(authority ledger.Identity, vault ledger.Address, maxGridSize uint8, feeBps uint16, nonce uint8) (*Config, error) {
	if feeBps > MaxFeeBps {
		return nil, cerr.ErrInvalidFee
	}
	if maxGridSize < MinGridSize || maxGridSize > MaxGridSize {
		return nil, cerr.ErrInvalidGridSize
	}
	return &Config{
		Authority:   authority,
		Vault:       vault,
		MaxGridSize: maxGridSize,
		FeeBps:      feeBps,
		Nonce:       nonce,
	}, nil
}

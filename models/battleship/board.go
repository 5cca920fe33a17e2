package battleship

import (
	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

type PlayerBoard struct {
	GameId  uint64          `json:"game_id"`
	Owner   ledger.Identity `json:"owner"`
	Nonce   uint8           `json:"nonce"`
	Ships   []Ship          `json:"ships"`
	Attacks []Coordinates   `json:"attacks"`
}

func NewPlayerBoard(gameId uint64, owner ledger.Identity, nonce uint8) *PlayerBoard {
	return &PlayerBoard{
		GameId:  gameId,
		Owner:   owner,
		Nonce:   nonce,
		Ships:   []Ship{},
		Attacks: make([]Coordinates, 0, 8),
	}
}

func (b *PlayerBoard) HasShips() bool {
	return len(b.Ships) > 0
}

// PlaceShips stores the layout once. Every corner must be in the owner's
// half of the grid.
func (b *PlayerBoard) PlaceShips(gridSize uint8, ships []Ship) error {
	if b.HasShips() {
		return cerr.ErrShipsAlreadyPlaced
	}
	if len(ships) == 0 || len(ships) > MaxShips {
		return cerr.ErrInvalidShipPlacement
	}
	for i, ship := range ships {
		if !ship.InBounds(gridSize) {
			return cerr.ErrShipOutOfBound(i)
		}
	}

	b.Ships = append([]Ship{}, ships...)
	return nil
}

func (b *PlayerBoard) IsAttacked(c Coordinates) bool {
	return indexOf(b.Attacks, c) >= 0
}

// ReceiveAttack appends c to the attack history. The history is append only;
// turn order is derived from its length.
func (b *PlayerBoard) ReceiveAttack(gridSize uint8, c Coordinates) error {
	if !c.InBounds(gridSize) {
		return cerr.ErrXorYOutOfGridBound(c.X, c.Y)
	}
	if b.IsAttacked(c) {
		return cerr.ErrAttackPositionAlreadyFilled(c.X, c.Y)
	}
	if len(b.Attacks) >= MaxAttacks {
		return cerr.ErrAttackLimitReached
	}

	b.Attacks = append(b.Attacks, c)
	return nil
}

// Occupies reports whether any ship covers c.
func (b *PlayerBoard) Occupies(c Coordinates) bool {
	for _, ship := range b.Ships {
		if indexOf(ship.Cells(), c) >= 0 {
			return true
		}
	}
	return false
}

// IsFleetSunk is false for a board without ships.
func (b *PlayerBoard) IsFleetSunk() bool {
	_, sunk := b.sinkIndex()
	return sunk
}

// sinkIndex returns the position in the attack history of the attack that
// completed the sinking of the whole fleet.
func (b *PlayerBoard) sinkIndex() (int, bool) {
	if !b.HasShips() {
		return -1, false
	}

	last := -1
	for _, ship := range b.Ships {
		for _, cell := range ship.Cells() {
			idx := indexOf(b.Attacks, cell)
			if idx < 0 {
				return -1, false
			}
			if idx > last {
				last = idx
			}
		}
	}
	return last, true
}

package battleship

import (
	"testing"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShipCellsNormalizesCorners(t *testing.T) {
	forward := NewShip(1, 0, 2, 1).Cells()
	backward := NewShip(2, 1, 1, 0).Cells()

	assert.ElementsMatch(t, forward, backward)
	assert.ElementsMatch(t, []Coordinates{{1, 0}, {1, 1}, {2, 0}, {2, 1}}, forward)
}

func TestShipCellsAtEdgeOfByteRange(t *testing.T) {
	cells := NewShip(254, 0, 255, 0).Cells()
	assert.Equal(t, []Coordinates{{254, 0}, {255, 0}}, cells)
}

func TestPlaceShips(t *testing.T) {
	tests := []struct {
		name   string
		grid   uint8
		ships  []Ship
		expErr error
	}{
		{name: "single cell", grid: 4, ships: []Ship{NewShip(0, 0, 0, 0)}},
		{name: "five ships", grid: 10, ships: []Ship{
			NewShip(0, 0, 0, 0), NewShip(1, 0, 1, 0), NewShip(2, 0, 2, 0), NewShip(3, 0, 3, 0), NewShip(4, 0, 4, 4),
		}},
		{name: "no ships", grid: 4, ships: []Ship{}, expErr: cerr.ErrInvalidShipPlacement},
		{name: "six ships", grid: 10, ships: []Ship{
			NewShip(0, 0, 0, 0), NewShip(1, 0, 1, 0), NewShip(2, 0, 2, 0),
			NewShip(3, 0, 3, 0), NewShip(4, 0, 4, 0), NewShip(5, 0, 5, 0),
		}, expErr: cerr.ErrInvalidShipPlacement},
		{name: "y in opponent half", grid: 4, ships: []Ship{NewShip(0, 0, 0, 2)}, expErr: cerr.ErrInvalidShipPlacement},
		{name: "x past grid", grid: 4, ships: []Ship{NewShip(4, 0, 4, 0)}, expErr: cerr.ErrInvalidShipPlacement},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			board := NewPlayerBoard(1, ledger.NewIdentity(), 255)
			err := board.PlaceShips(test.grid, test.ships)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				assert.False(t, board.HasShips())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.ships, board.Ships)
		})
	}
}

func TestPlaceShipsOnlyOnce(t *testing.T) {
	board := NewPlayerBoard(1, ledger.NewIdentity(), 255)
	require.NoError(t, board.PlaceShips(4, []Ship{NewShip(0, 0, 0, 0)}))

	err := board.PlaceShips(4, []Ship{NewShip(1, 1, 1, 1)})
	assert.ErrorIs(t, err, cerr.ErrShipsAlreadyPlaced)
	assert.Equal(t, []Ship{NewShip(0, 0, 0, 0)}, board.Ships)
}

func TestReceiveAttack(t *testing.T) {
	board := NewPlayerBoard(1, ledger.NewIdentity(), 255)

	require.NoError(t, board.ReceiveAttack(4, NewCoordinates(3, 1)))
	assert.ErrorIs(t, board.ReceiveAttack(4, NewCoordinates(3, 1)), cerr.ErrCellAlreadyAttacked)
	assert.ErrorIs(t, board.ReceiveAttack(4, NewCoordinates(4, 0)), cerr.ErrAttackOutOfBounds)
	assert.ErrorIs(t, board.ReceiveAttack(4, NewCoordinates(0, 2)), cerr.ErrAttackOutOfBounds)
	assert.Equal(t, []Coordinates{{3, 1}}, board.Attacks)
}

func TestReceiveAttackCapacity(t *testing.T) {
	board := NewPlayerBoard(1, ledger.NewIdentity(), 255)
	// a 10x5 half holds exactly MaxAttacks cells
	for y := uint8(0); y < 5; y++ {
		for x := uint8(0); x < 10; x++ {
			require.NoError(t, board.ReceiveAttack(10, NewCoordinates(x, y)))
		}
	}
	assert.Len(t, board.Attacks, MaxAttacks)

	// a larger grid would overflow the list
	assert.ErrorIs(t, board.ReceiveAttack(12, NewCoordinates(11, 0)), cerr.ErrAttackLimitReached)
}

func TestFleetSunk(t *testing.T) {
	board := NewPlayerBoard(1, ledger.NewIdentity(), 255)
	assert.False(t, board.IsFleetSunk(), "empty fleet is never sunk")

	require.NoError(t, board.PlaceShips(4, []Ship{NewShip(0, 0, 1, 0), NewShip(3, 1, 3, 1)}))
	for _, c := range []Coordinates{{0, 0}, {3, 1}} {
		require.NoError(t, board.ReceiveAttack(4, c))
		assert.False(t, board.IsFleetSunk())
	}
	require.NoError(t, board.ReceiveAttack(4, NewCoordinates(1, 0)))
	assert.True(t, board.IsFleetSunk())

	idx, sunk := board.sinkIndex()
	assert.True(t, sunk)
	assert.Equal(t, 2, idx)
}

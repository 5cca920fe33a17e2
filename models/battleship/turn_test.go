package battleship

import (
	"testing"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedGame(t *testing.T, id uint64, grid uint8) (*Game, *PlayerBoard, *PlayerBoard) {
	t.Helper()
	creator, joiner := ledger.NewIdentity(), ledger.NewIdentity()
	g, err := NewGame(id, grid, creator, 0, 255)
	require.NoError(t, err)
	require.NoError(t, g.Join(joiner))
	return g, NewPlayerBoard(id, creator, 254), NewPlayerBoard(id, joiner, 253)
}

func TestTurnsAlternateStrictly(t *testing.T) {
	for _, id := range []uint64{2, 3} {
		g, b1, b2 := startedGame(t, id, 10)

		prev, err := g.EntitledMover(b1, b2)
		require.NoError(t, err)
		if g.NextMovePlayer1 {
			assert.Equal(t, g.Player1, prev)
		} else {
			assert.Equal(t, *g.Player2, prev)
		}

		for n := 0; n < 2*MaxAttacks-1; n++ {
			c := NewCoordinates(uint8(n/2%10), uint8(n/2/10))
			if prev == g.Player1 {
				require.NoError(t, b2.ReceiveAttack(g.GridSize, c))
			} else {
				require.NoError(t, b1.ReceiveAttack(g.GridSize, c))
			}

			next, err := g.EntitledMover(b1, b2)
			require.NoError(t, err)
			assert.NotEqual(t, prev, next, "shot %d", n)
			prev = next
		}
	}
}

func TestWinnerSingleSink(t *testing.T) {
	g, b1, b2 := startedGame(t, 2, 4)
	require.NoError(t, b1.PlaceShips(4, []Ship{NewShip(0, 0, 0, 0)}))
	require.NoError(t, b2.PlaceShips(4, []Ship{NewShip(1, 1, 1, 1)}))

	_, err := g.Winner(b1, b2)
	assert.ErrorIs(t, err, cerr.ErrNotAllShipsSunk)

	require.NoError(t, b2.ReceiveAttack(4, NewCoordinates(1, 1)))
	winner, err := g.Winner(b1, b2)
	require.NoError(t, err)
	assert.Equal(t, g.Player1, winner)
}

func TestWinnerRequiresPlacedShips(t *testing.T) {
	g, b1, b2 := startedGame(t, 2, 4)
	require.NoError(t, b1.PlaceShips(4, []Ship{NewShip(0, 0, 0, 0)}))

	_, err := g.Winner(b1, b2)
	assert.ErrorIs(t, err, cerr.ErrShipsNotPlaced)

	unstarted, err := NewGame(4, 4, ledger.NewIdentity(), 0, 255)
	require.NoError(t, err)
	_, err = unstarted.Winner(b1, b2)
	assert.ErrorIs(t, err, cerr.ErrGameNotStarted)
}

func TestWinnerDoubleSinkGoesToEarlierFinisher(t *testing.T) {
	tests := []struct {
		name string
		id   uint64
		// attack targets in order of play; the mover alternates starting with
		// the first mover of the match
		shots     []Coordinates
		p1Expects bool
	}{
		{
			// p1 moves first and finishes on shot 0; p2 finishes on shot 1
			name:      "first mover finishes first",
			id:        2,
			shots:     []Coordinates{{1, 1}, {0, 0}},
			p1Expects: true,
		},
		{
			// p2 moves first: p2 misses, p1 sinks on shot 1, p2 sinks on shot 2
			name:      "second mover finishes first",
			id:        3,
			shots:     []Coordinates{{3, 1}, {1, 1}, {0, 0}},
			p1Expects: true,
		},
		{
			// p1 moves first but misses; p2 sinks on shot 1, p1 sinks on shot 2
			name:      "second mover wins race",
			id:        2,
			shots:     []Coordinates{{3, 1}, {0, 0}, {1, 1}},
			p1Expects: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			g, b1, b2 := startedGame(t, test.id, 4)
			require.NoError(t, b1.PlaceShips(4, []Ship{NewShip(0, 0, 0, 0)}))
			require.NoError(t, b2.PlaceShips(4, []Ship{NewShip(1, 1, 1, 1)}))

			for _, c := range test.shots {
				mover, err := g.EntitledMover(b1, b2)
				require.NoError(t, err)
				if mover == g.Player1 {
					require.NoError(t, b2.ReceiveAttack(4, c))
				} else {
					require.NoError(t, b1.ReceiveAttack(4, c))
				}
			}
			require.True(t, b1.IsFleetSunk())
			require.True(t, b2.IsFleetSunk())

			winner, err := g.Winner(b1, b2)
			require.NoError(t, err)
			if test.p1Expects {
				assert.Equal(t, g.Player1, winner)
			} else {
				assert.Equal(t, *g.Player2, winner)
			}
		})
	}
}

func TestShotIndicesNeverTie(t *testing.T) {
	for a := 0; a < MaxAttacks; a++ {
		for b := 0; b < MaxAttacks; b++ {
			assert.NotEqual(t, shotIndex(a, true), shotIndex(b, false))
		}
	}
}

package battleship

import (
	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

// Player1ToMove derives the turn purely from the two attack histories.
// Player 1 moves when the parity of the total shot count matches the
// stored first-move flag.
func Player1ToMove(nextMovePlayer1 bool, attacksOnPlayer1, attacksOnPlayer2 int) bool {
	total := attacksOnPlayer1 + attacksOnPlayer2
	return (total%2 == 0) == nextMovePlayer1
}

// EntitledMover returns the identity allowed to attack next.
func (g *Game) EntitledMover(board1, board2 *PlayerBoard) (ledger.Identity, error) {
	if g.Player2 == nil {
		return ledger.Identity{}, cerr.ErrGameNotStarted
	}
	if Player1ToMove(g.NextMovePlayer1, len(board1.Attacks), len(board2.Attacks)) {
		return g.Player1, nil
	}
	return *g.Player2, nil
}

// shotIndex maps the j-th attack made by one player to its position in the
// global, strictly alternating, turn order.
func shotIndex(j int, attackerMovesFirst bool) int {
	if attackerMovesFirst {
		return 2 * j
	}
	return 2*j + 1
}

// Winner decides the match from both boards. When both fleets are sunk the
// player whose fleet-completing shot came first in turn order wins; the two
// indices always have different parity so they can never be equal.
func (g *Game) Winner(board1, board2 *PlayerBoard) (ledger.Identity, error) {
	if g.Player2 == nil {
		return ledger.Identity{}, cerr.ErrGameNotStarted
	}
	if !board1.HasShips() || !board2.HasShips() {
		return ledger.Identity{}, cerr.ErrShipsNotPlaced
	}

	// board1 is attacked by player 2, board2 by player 1
	sunk1At, sunk1 := board1.sinkIndex()
	sunk2At, sunk2 := board2.sinkIndex()

	switch {
	case !sunk1 && !sunk2:
		return ledger.Identity{}, cerr.ErrNotAllShipsSunk
	case sunk2 && !sunk1:
		return g.Player1, nil
	case sunk1 && !sunk2:
		return *g.Player2, nil
	}

	player1Done := shotIndex(sunk2At, g.NextMovePlayer1)
	player2Done := shotIndex(sunk1At, !g.NextMovePlayer1)
	if player1Done < player2Done {
		return g.Player1, nil
	}
	return *g.Player2, nil
}

package battleship

import (
	"github.com/saeidalz13/battleship-escrow/internal"
	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

// MinimumWager applies to nonzero wagers only; a zero wager is always legal.
const MinimumWager uint64 = 100_000

type StatusKind uint8

const (
	StatusAwaitingPlayerTwo StatusKind = iota
	StatusInProgress
	StatusAwaitingWinnerReveal
	StatusCompleted
	StatusCancelled
	StatusForfeited
)

func (k StatusKind) String() string {
	switch k {
	case StatusAwaitingPlayerTwo:
		return "awaiting_player_two"
	case StatusInProgress:
		return "in_progress"
	case StatusAwaitingWinnerReveal:
		return "awaiting_winner_reveal"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusForfeited:
		return "forfeited"
	default:
		return "unknown"
	}
}

// rank orders the statuses; terminal statuses share the highest rank.
func (k StatusKind) rank() int {
	switch k {
	case StatusAwaitingPlayerTwo:
		return 0
	case StatusInProgress:
		return 1
	case StatusAwaitingWinnerReveal:
		return 2
	default:
		return 3
	}
}

func (k StatusKind) hasWinner() bool {
	return k == StatusCompleted || k == StatusForfeited
}

type GameStatus struct {
	Kind   StatusKind       `json:"kind"`
	Winner *ledger.Identity `json:"winner,omitempty"`
}

func (s GameStatus) IsTerminal() bool {
	return s.Kind.rank() == 3
}

type Game struct {
	Id                   uint64           `json:"id"`
	GridSize             uint8            `json:"grid_size"`
	Player1              ledger.Identity  `json:"player_1"`
	Player2              *ledger.Identity `json:"player_2,omitempty"`
	RevealedShipsPlayer1 []Ship           `json:"revealed_ships_player_1"`
	RevealedShipsPlayer2 []Ship           `json:"revealed_ships_player_2"`
	NextMovePlayer1      bool             `json:"next_move_player_1"`
	Wager                uint64           `json:"wager"`
	Status               GameStatus       `json:"status"`
	Nonce                uint8            `json:"nonce"`
}

// FirstMoveForMatch decides whether the creator moves on even shot counts.
// The parity of a caller-chosen id is predictable, so the creator can pick
// who moves first. Swap for a verifiable random source if that matters.
func FirstMoveForMatch(gameId uint64) bool {
	return gameId%2 == 0
}

func ValidateWager(wager uint64) error {
	if wager > 0 && wager < MinimumWager {
		return cerr.ErrWagerBelowMinimum(wager, MinimumWager)
	}
	return nil
}

func NewGame(gameId uint64, gridSize uint8, creator ledger.Identity, wager uint64, nonce uint8) (*Game, error) {
	if err := ValidateWager(wager); err != nil {
		return nil, err
	}
	// both deposits must fit in the vault's pot
	if _, err := internal.CheckedAdd(wager, wager); err != nil {
		return nil, err
	}

	return &Game{
		Id:                   gameId,
		GridSize:             gridSize,
		Player1:              creator,
		RevealedShipsPlayer1: []Ship{},
		RevealedShipsPlayer2: []Ship{},
		NextMovePlayer1:      FirstMoveForMatch(gameId),
		Wager:                wager,
		Status:               GameStatus{Kind: StatusAwaitingPlayerTwo},
		Nonce:                nonce,
	}, nil
}

func (g *Game) HasStarted() bool {
	return g.Player2 != nil
}

func (g *Game) IsParticipant(id ledger.Identity) bool {
	return id == g.Player1 || (g.Player2 != nil && id == *g.Player2)
}

// Opponent returns the other participant relative to id.
func (g *Game) Opponent(id ledger.Identity) (ledger.Identity, error) {
	if g.Player2 == nil {
		return ledger.Identity{}, cerr.ErrGameNotStarted
	}
	switch id {
	case g.Player1:
		return *g.Player2, nil
	case *g.Player2:
		return g.Player1, nil
	default:
		return ledger.Identity{}, cerr.ErrNotAParticipant
	}
}

// Pot is the amount held by the vault for this game.
func (g *Game) Pot() (uint64, error) {
	if g.Player2 == nil {
		return g.Wager, nil
	}
	return internal.CheckedAdd(g.Wager, g.Wager)
}

func (g *Game) advance(next GameStatus) error {
	if next.Kind.rank() <= g.Status.Kind.rank() {
		return cerr.ErrInvalidStatusChange
	}
	if next.Kind.hasWinner() && next.Winner == nil {
		return cerr.ErrInvalidStatusChange
	}
	g.Status = next
	return nil
}

// Join sets player 2 exactly once.
func (g *Game) Join(joiner ledger.Identity) error {
	if joiner == g.Player1 {
		return cerr.ErrCannotJoinSelfGame
	}
	if g.Player2 != nil {
		return cerr.ErrGameFull
	}
	if g.Status.Kind != StatusAwaitingPlayerTwo {
		return cerr.ErrGameNotJoinable
	}
	if err := g.advance(GameStatus{Kind: StatusInProgress}); err != nil {
		return err
	}
	g.Player2 = &joiner
	return nil
}

func (g *Game) AwaitReveal() error {
	if g.Status.Kind != StatusInProgress {
		return cerr.ErrGameNotInProgress
	}
	return g.advance(GameStatus{Kind: StatusAwaitingWinnerReveal})
}

func (g *Game) Complete(winner ledger.Identity, ships1, ships2 []Ship) error {
	if g.Status.Kind != StatusInProgress && g.Status.Kind != StatusAwaitingWinnerReveal {
		return cerr.ErrGameNotInProgress
	}
	if err := g.advance(GameStatus{Kind: StatusCompleted, Winner: &winner}); err != nil {
		return err
	}
	g.RevealedShipsPlayer1 = append([]Ship{}, ships1...)
	g.RevealedShipsPlayer2 = append([]Ship{}, ships2...)
	return nil
}

// Forfeit concedes the game on behalf of loser and returns the winner.
func (g *Game) Forfeit(loser ledger.Identity) (ledger.Identity, error) {
	winner, err := g.Opponent(loser)
	if err != nil {
		return ledger.Identity{}, err
	}
	if g.Status.Kind != StatusInProgress {
		return ledger.Identity{}, cerr.ErrGameNotInProgress
	}
	if err := g.advance(GameStatus{Kind: StatusForfeited, Winner: &winner}); err != nil {
		return ledger.Identity{}, err
	}
	return winner, nil
}

func (g *Game) Cancel(by ledger.Identity) error {
	if by != g.Player1 {
		return cerr.ErrNotAParticipant
	}
	if g.Status.Kind != StatusAwaitingPlayerTwo {
		return cerr.ErrGameNotJoinable
	}
	return g.advance(GameStatus{Kind: StatusCancelled})
}

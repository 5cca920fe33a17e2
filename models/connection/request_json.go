package connection

import (
	mb "github.com/saeidalz13/battleship-escrow/models/battleship"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

type ReqInitConfig struct {
	Authority   ledger.Identity `json:"authority"`
	MaxGridSize uint8           `json:"max_grid_size"`
	FeeBps      uint16          `json:"fee_bps"`
}

type ReqCreateGame struct {
	GameId   uint64 `json:"game_id"`
	GridSize uint8  `json:"grid_size"`
	Wager    uint64 `json:"wager"`
}

// ReqGame addresses a game without further arguments.
type ReqGame struct {
	GameId uint64 `json:"game_id"`
}

type ReqHideShips struct {
	GameId uint64    `json:"game_id"`
	Ships  []mb.Ship `json:"ships"`
}

type ReqDelegateBoard struct {
	GameId    uint64           `json:"game_id"`
	Executor  ledger.Identity  `json:"executor"`
	Validator *ledger.Identity `json:"validator,omitempty"`
}

type ReqMakeMove struct {
	GameId   uint64          `json:"game_id"`
	Opponent ledger.Identity `json:"opponent"`
	X        uint8           `json:"x"`
	Y        uint8           `json:"y"`
}

type ReqGetBoard struct {
	GameId uint64          `json:"game_id"`
	Owner  ledger.Identity `json:"owner"`
}

// ReqGetBalance reads the wallet of Owner, or of the session's identity when
// Owner is omitted.
type ReqGetBalance struct {
	Owner *ledger.Identity `json:"owner,omitempty"`
}

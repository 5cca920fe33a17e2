package connection

import (
	mb "github.com/saeidalz13/battleship-escrow/models/battleship"
	"github.com/saeidalz13/battleship-escrow/models/delegation"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

type RespSessionId struct {
	SessionID string          `json:"session_id"`
	Identity  ledger.Identity `json:"identity"`
}

type RespConfig struct {
	Config *mb.Config `json:"config"`
}

type RespGame struct {
	Game *mb.Game `json:"game"`
}

type RespBoard struct {
	Board *mb.PlayerBoard `json:"board"`
}

type RespDelegation struct {
	GameId uint64            `json:"game_id"`
	Status delegation.Status `json:"status"`
}

type RespMove struct {
	GameId    uint64          `json:"game_id"`
	Attacker  ledger.Identity `json:"attacker"`
	Defender  ledger.Identity `json:"defender"`
	X         uint8           `json:"x"`
	Y         uint8           `json:"y"`
	Hit       bool            `json:"hit"`
	FleetSunk bool            `json:"fleet_sunk"`
}

type RespBalance struct {
	Owner  ledger.Identity `json:"owner"`
	Wallet uint64          `json:"wallet"`
	Vault  uint64          `json:"vault"`
}

type RespErr struct {
	ErrorDetails string `json:"error_details,omitempty"`
	Message      string `json:"message,omitempty"`
}

func NewRespErr(errorDetails, message string) *RespErr {
	return &RespErr{
		ErrorDetails: errorDetails,
		Message:      message,
	}
}

package error

import (
	"errors"
	"fmt"
)

// Class groups the named failure conditions by what went wrong.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassAuthorization
	ClassSequencing
	ClassNumeric
	ClassDelegation
	ClassNotFound
	ClassFunds
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassAuthorization:
		return "authorization"
	case ClassSequencing:
		return "sequencing"
	case ClassNumeric:
		return "numeric"
	case ClassDelegation:
		return "delegation"
	case ClassNotFound:
		return "not_found"
	case ClassFunds:
		return "funds"
	default:
		return "unknown"
	}
}

// GameErr is a named, terminal failure of a single instruction.
type GameErr struct {
	code  string
	class Class
	desc  string
}

func newGameErr(code string, class Class, desc string) *GameErr {
	return &GameErr{code: code, class: class, desc: desc}
}

func (e *GameErr) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.desc)
}

func (e *GameErr) Code() string {
	return e.code
}

func (e *GameErr) Class() Class {
	return e.class
}

var (
	ErrOverflow = newGameErr("Overflow", ClassNumeric, "number overflowed")

	ErrMinimumWager         = newGameErr("MinimumWager", ClassValidation, "wager was supplied but below minimum")
	ErrInvalidGridSize      = newGameErr("InvalidGridSize", ClassValidation, "grid size is outside the configured bounds")
	ErrInvalidFee           = newGameErr("InvalidFee", ClassValidation, "fee must not exceed 10000 basis points")
	ErrInvalidShipPlacement = newGameErr("InvalidShipPlacement", ClassValidation, "ship placement is outside the player's half of the grid")
	ErrAttackOutOfBounds    = newGameErr("AttackOutOfBounds", ClassValidation, "attack coordinate is outside the grid")
	ErrCellAlreadyAttacked  = newGameErr("CellAlreadyAttacked", ClassValidation, "cell was already attacked")
	ErrAttackLimitReached   = newGameErr("AttackLimitReached", ClassValidation, "board cannot record more attacks")

	ErrCannotJoinSelfGame = newGameErr("CannotJoinSelfGame", ClassAuthorization, "cannot join a game created by yourself")
	ErrGameFull           = newGameErr("GameFull", ClassAuthorization, "the game has already been joined by someone else")
	ErrInvalidTurn        = newGameErr("InvalidTurn", ClassAuthorization, "signer tried to make a move out of turn")
	ErrInvalidOpponent    = newGameErr("InvalidOpponent", ClassAuthorization, "provided opponent is incorrect")
	ErrNotAParticipant    = newGameErr("NotAParticipant", ClassAuthorization, "signer is not a participant of this game")
	ErrUnauthorized       = newGameErr("Unauthorized", ClassAuthorization, "signer is not the config authority")
	ErrPermissionDenied   = newGameErr("PermissionDenied", ClassAuthorization, "viewer is not allowed to read this record")

	ErrGameNotStarted       = newGameErr("GameNotStarted", ClassSequencing, "game hasn't been joined by any player_2")
	ErrGameNotInProgress    = newGameErr("GameNotInProgress", ClassSequencing, "game is not in progress")
	ErrGameNotJoinable      = newGameErr("GameNotJoinable", ClassSequencing, "game is no longer awaiting a second player")
	ErrShipsNotPlaced       = newGameErr("ShipsNotPlaced", ClassSequencing, "both players must hide their ships first")
	ErrShipsAlreadyPlaced   = newGameErr("ShipsAlreadyPlaced", ClassSequencing, "ships were already placed on this board")
	ErrNotAllShipsSunk      = newGameErr("NotAllShipsSunk", ClassSequencing, "no fleet has been fully sunk")
	ErrGameAlreadyExists    = newGameErr("GameAlreadyExists", ClassSequencing, "match id is already in use")
	ErrInvalidStatusChange  = newGameErr("InvalidStatusTransition", ClassSequencing, "game status can only move forward")
	ErrConfigNotInitialized = newGameErr("ConfigNotInitialized", ClassSequencing, "config has not been initialized")

	ErrRecordDelegated    = newGameErr("RecordDelegated", ClassDelegation, "record is delegated to another execution context")
	ErrRecordNotDelegated = newGameErr("RecordNotDelegated", ClassDelegation, "record is not delegated to this execution context")
	ErrCommitPending      = newGameErr("CommitPending", ClassDelegation, "record is waiting to be committed to the durable layer")
	ErrBoardDelegated     = newGameErr("BoardDelegated", ClassDelegation, "boards must be committed before the winner is revealed")
	ErrExecutorMismatch   = newGameErr("ExecutorMismatch", ClassDelegation, "boards of this game are delegated to another executor")

	ErrGameNotFound   = newGameErr("GameNotFound", ClassNotFound, "game does not exist")
	ErrBoardNotFound  = newGameErr("BoardNotFound", ClassNotFound, "player board does not exist")
	ErrRecordNotFound = newGameErr("RecordNotFound", ClassNotFound, "record does not exist")

	ErrInsufficientFunds = newGameErr("InsufficientFunds", ClassFunds, "not enough funds for the transfer")
)

// CodeOf returns the name of the condition wrapped in err, or "Unknown".
func CodeOf(err error) string {
	var gErr *GameErr
	if errors.As(err, &gErr) {
		return gErr.code
	}
	return "Unknown"
}

// ClassOf returns the class of the condition wrapped in err.
func ClassOf(err error) Class {
	var gErr *GameErr
	if errors.As(err, &gErr) {
		return gErr.class
	}
	return ClassUnknown
}

func ErrGameNotExists(gameId uint64) error {
	return fmt.Errorf("%w, id: %d", ErrGameNotFound, gameId)
}

func ErrBoardNotExists(gameId uint64, owner string) error {
	return fmt.Errorf("%w, game id: %d\towner: %s", ErrBoardNotFound, gameId, owner)
}

func ErrXorYOutOfGridBound(x, y uint8) error {
	return fmt.Errorf("%w\tx: %d\ty: %d", ErrAttackOutOfBounds, x, y)
}

func ErrAttackPositionAlreadyFilled(x, y uint8) error {
	return fmt.Errorf("%w\tx: %d\ty: %d", ErrCellAlreadyAttacked, x, y)
}

func ErrShipOutOfBound(idx int) error {
	return fmt.Errorf("%w\tship index: %d", ErrInvalidShipPlacement, idx)
}

func ErrWagerBelowMinimum(wager, minimum uint64) error {
	return fmt.Errorf("%w\twager: %d\tminimum: %d", ErrMinimumWager, wager, minimum)
}

func ErrNotEnoughFunds(owner string, have, want uint64) error {
	return fmt.Errorf("%w\towner: %s\thave: %d\twant: %d", ErrInsufficientFunds, owner, have, want)
}

func ErrCorruptRecord(kind string, reason string) error {
	return fmt.Errorf("corrupt %s record: %s", kind, reason)
}

package api

import (
	"context"
	"encoding/json"
	"log"
	"time"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	mb "github.com/saeidalz13/battleship-escrow/models/battleship"
	mc "github.com/saeidalz13/battleship-escrow/models/connection"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

const instructionTimeout = time.Second * 10

// Request turns the frames of one session into instructions.
type Request struct {
	processor      *Processor
	sessionManager mc.SessionManager
	session        *mc.Session
	signer         Signer
}

func NewRequest(processor *Processor, sessionManager mc.SessionManager, session *mc.Session) *Request {
	return &Request{
		processor:      processor,
		sessionManager: sessionManager,
		session:        session,
		signer:         Signer{Identity: session.Identity(), Executor: session.Executor()},
	}
}

func decodePayload[T any](payload []byte) (T, error) {
	var msg mc.Message[T]
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg.Payload, err
	}
	return msg.Payload, nil
}

// respond builds the reply to an instruction. The error code name travels
// in message so that clients can switch on it.
func respond[T any](code uint8, payload T, err error) mc.Message[T] {
	msg := mc.NewMessage[T](code)
	if err != nil {
		msg.AddError(err.Error(), cerr.CodeOf(err))
		return msg
	}
	msg.AddPayload(payload)
	return msg
}

// Handle executes one frame and returns the reply to write back.
func (r *Request) Handle(payload []byte) interface{} {
	code, err := mc.FetchCodeFromMsg(payload)
	if err != nil {
		msg := mc.NewMessage[mc.NoPayload](mc.CodeSignalAbsent)
		msg.AddError("incoming req payload must contain 'code' field", "")
		return msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), instructionTimeout)
	defer cancel()

	switch code {
	case mc.CodeInitConfig:
		return r.HandleInitConfig(ctx, payload)
	case mc.CodeCreateGame:
		return r.HandleCreateGame(ctx, payload)
	case mc.CodeJoinGame:
		return r.HandleJoinGame(ctx, payload)
	case mc.CodeHideShips:
		return r.HandleHideShips(ctx, payload)
	case mc.CodeDelegateBoard:
		return r.HandleDelegateBoard(ctx, payload)
	case mc.CodeMakeMove:
		return r.HandleMakeMove(ctx, payload)
	case mc.CodeCommitBoards:
		return r.handleGameInstruction(ctx, code, payload, r.processor.CommitBoards)
	case mc.CodeRevealWinner:
		return r.handleGameEnding(ctx, code, payload, r.processor.RevealWinner)
	case mc.CodeForfeit:
		return r.handleGameEnding(ctx, code, payload, r.processor.Forfeit)
	case mc.CodeCancelGame:
		return r.handleGameInstruction(ctx, code, payload, r.processor.CancelGame)
	case mc.CodeGetConfig:
		cfg, err := r.processor.GetConfig(ctx)
		return respond(code, mc.RespConfig{Config: cfg}, err)
	case mc.CodeGetGame:
		return r.HandleGetGame(ctx, payload)
	case mc.CodeGetBoard:
		return r.HandleGetBoard(ctx, payload)
	case mc.CodeGetBalance:
		return r.HandleGetBalance(ctx, payload)
	default:
		msg := mc.NewMessage[mc.NoPayload](mc.CodeInvalidSignal)
		msg.AddError("", "invalid code in the incoming payload")
		return msg
	}
}

func (r *Request) HandleInitConfig(ctx context.Context, payload []byte) mc.Message[mc.RespConfig] {
	req, err := decodePayload[mc.ReqInitConfig](payload)
	if err != nil {
		return respond(mc.CodeInitConfig, mc.RespConfig{}, err)
	}
	cfg, err := r.processor.InitConfig(ctx, r.signer, req.Authority, req.MaxGridSize, req.FeeBps)
	return respond(mc.CodeInitConfig, mc.RespConfig{Config: cfg}, err)
}

func (r *Request) HandleCreateGame(ctx context.Context, payload []byte) mc.Message[mc.RespGame] {
	req, err := decodePayload[mc.ReqCreateGame](payload)
	if err != nil {
		return respond(mc.CodeCreateGame, mc.RespGame{}, err)
	}
	game, err := r.processor.CreateGame(ctx, r.signer, req.GameId, req.GridSize, req.Wager)
	return respond(mc.CodeCreateGame, mc.RespGame{Game: game}, err)
}

// HandleJoinGame also tells the creator that the game started.
func (r *Request) HandleJoinGame(ctx context.Context, payload []byte) mc.Message[mc.RespGame] {
	req, err := decodePayload[mc.ReqGame](payload)
	if err != nil {
		return respond(mc.CodeJoinGame, mc.RespGame{}, err)
	}
	game, err := r.processor.JoinGame(ctx, r.signer, req.GameId)
	if err != nil {
		return respond(mc.CodeJoinGame, mc.RespGame{}, err)
	}

	r.session.Watch(game.Player1)
	if creatorSession, err := r.sessionManager.FindSessionByIdentity(game.Player1); err == nil {
		creatorSession.Watch(r.signer.Identity)
	}
	r.notify(game.Player1, respond(mc.CodeOpponentJoined, mc.RespGame{Game: game}, nil))

	return respond(mc.CodeJoinGame, mc.RespGame{Game: game}, nil)
}

func (r *Request) HandleHideShips(ctx context.Context, payload []byte) mc.Message[mc.RespBoard] {
	req, err := decodePayload[mc.ReqHideShips](payload)
	if err != nil {
		return respond(mc.CodeHideShips, mc.RespBoard{}, err)
	}
	board, err := r.processor.HideShips(ctx, r.signer, req.GameId, req.Ships)
	return respond(mc.CodeHideShips, mc.RespBoard{Board: board}, err)
}

func (r *Request) HandleDelegateBoard(ctx context.Context, payload []byte) mc.Message[mc.RespDelegation] {
	req, err := decodePayload[mc.ReqDelegateBoard](payload)
	if err != nil {
		return respond(mc.CodeDelegateBoard, mc.RespDelegation{}, err)
	}
	status, err := r.processor.DelegateBoard(ctx, r.signer, req.GameId, req.Executor, req.Validator)
	return respond(mc.CodeDelegateBoard, mc.RespDelegation{GameId: req.GameId, Status: status}, err)
}

// HandleMakeMove pushes the attack to the defender as well.
func (r *Request) HandleMakeMove(ctx context.Context, payload []byte) mc.Message[mc.RespMove] {
	req, err := decodePayload[mc.ReqMakeMove](payload)
	if err != nil {
		return respond(mc.CodeMakeMove, mc.RespMove{}, err)
	}
	res, err := r.processor.MakeMove(ctx, r.signer, req.GameId, req.Opponent, mb.NewCoordinates(req.X, req.Y))
	if err != nil {
		return respond(mc.CodeMakeMove, mc.RespMove{}, err)
	}

	resp := mc.RespMove{
		GameId:    req.GameId,
		Attacker:  r.signer.Identity,
		Defender:  res.Defender,
		X:         res.Target.X,
		Y:         res.Target.Y,
		Hit:       res.Hit,
		FleetSunk: res.FleetSunk,
	}
	r.notify(res.Defender, respond(mc.CodeAttackReceived, resp, nil))
	return respond(mc.CodeMakeMove, resp, nil)
}

func (r *Request) handleGameInstruction(
	ctx context.Context,
	code uint8,
	payload []byte,
	fn func(context.Context, Signer, uint64) (*mb.Game, error),
) mc.Message[mc.RespGame] {
	req, err := decodePayload[mc.ReqGame](payload)
	if err != nil {
		return respond(code, mc.RespGame{}, err)
	}
	game, err := fn(ctx, r.signer, req.GameId)
	return respond(code, mc.RespGame{Game: game}, err)
}

// handleGameEnding runs an instruction that concludes a game and tells
// every other participant about the outcome.
func (r *Request) handleGameEnding(
	ctx context.Context,
	code uint8,
	payload []byte,
	fn func(context.Context, Signer, uint64) (*mb.Game, error),
) mc.Message[mc.RespGame] {
	resp := r.handleGameInstruction(ctx, code, payload, fn)
	if resp.Error != nil {
		return resp
	}

	game := resp.Payload.Game
	participants := []ledger.Identity{game.Player1}
	if game.Player2 != nil {
		participants = append(participants, *game.Player2)
	}
	for _, participant := range participants {
		if participant != r.signer.Identity {
			r.notify(participant, respond(mc.CodeGameEnded, mc.RespGame{Game: game}, nil))
		}
	}
	return resp
}

func (r *Request) HandleGetGame(ctx context.Context, payload []byte) mc.Message[mc.RespGame] {
	req, err := decodePayload[mc.ReqGame](payload)
	if err != nil {
		return respond(mc.CodeGetGame, mc.RespGame{}, err)
	}
	game, err := r.processor.GetGame(ctx, req.GameId)
	return respond(mc.CodeGetGame, mc.RespGame{Game: game}, err)
}

func (r *Request) HandleGetBoard(ctx context.Context, payload []byte) mc.Message[mc.RespBoard] {
	req, err := decodePayload[mc.ReqGetBoard](payload)
	if err != nil {
		return respond(mc.CodeGetBoard, mc.RespBoard{}, err)
	}
	board, err := r.processor.GetBoard(ctx, r.signer, req.GameId, req.Owner)
	return respond(mc.CodeGetBoard, mc.RespBoard{Board: board}, err)
}

func (r *Request) HandleGetBalance(ctx context.Context, payload []byte) mc.Message[mc.RespBalance] {
	req, err := decodePayload[mc.ReqGetBalance](payload)
	if err != nil {
		return respond(mc.CodeGetBalance, mc.RespBalance{}, err)
	}
	owner := r.signer.Identity
	if req.Owner != nil {
		owner = *req.Owner
	}

	wallet, err := r.processor.GetWalletBalance(ctx, owner)
	if err != nil {
		return respond(mc.CodeGetBalance, mc.RespBalance{}, err)
	}
	vault, err := r.processor.GetVaultBalance(ctx)
	return respond(mc.CodeGetBalance, mc.RespBalance{Owner: owner, Wallet: wallet, Vault: vault}, err)
}

func (r *Request) notify(receiver ledger.Identity, msg interface{}) {
	if err := r.sessionManager.Notify(receiver, msg); err != nil {
		log.Printf("failed to notify %s: %v\n", receiver, err)
	}
}

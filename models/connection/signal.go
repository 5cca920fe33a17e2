package connection

const (
	CodeSessionID uint8 = iota
	CodeReceivedInvalidSessionID
	CodeInvalidSignal

	// if the req msg does not contain "code" field
	CodeSignalAbsent

	CodeInitConfig
	CodeCreateGame
	CodeJoinGame
	CodeHideShips
	CodeDelegateBoard
	CodeMakeMove
	CodeCommitBoards
	CodeRevealWinner
	CodeForfeit
	CodeCancelGame

	CodeGetConfig
	CodeGetGame
	CodeGetBoard

	// Pushed to the other participant of a game
	CodeOpponentJoined
	CodeAttackReceived
	CodeGameEnded

	CodeOtherPlayerDisconnected
	CodeOtherPlayerReconnected
	CodeOtherPlayerGracePeriod

	CodeGetBalance
)

type Signal struct {
	Code uint8 `json:"code"`
}

func NewSignal(code uint8) Signal {
	return Signal{Code: code}
}

package connection

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

const (
	maxWriteWsRetries uint8         = 2
	backOffFactor     uint8         = 2
	gracePeriod       time.Duration = time.Minute * 2
)

const (
	MessageTypeBytes uint8 = iota
	MessageTypeJSON
)

// Session is one websocket connection of a signer. Instructions read from it
// are submitted as Identity, through Executor when set.
type Session struct {
	id       string
	identity ledger.Identity
	executor *ledger.Identity
	conn     *websocket.Conn

	// identities to warn when this session drops
	opponents map[ledger.Identity]struct{}

	reconnectionSignalChan chan bool
	createdAt              time.Time
	mu                     sync.Mutex
}

func NewSession(id string, conn *websocket.Conn, identity ledger.Identity, executor *ledger.Identity) *Session {
	return &Session{
		id:                     id,
		identity:               identity,
		executor:               executor,
		conn:                   conn,
		opponents:              make(map[ledger.Identity]struct{}, 1),
		reconnectionSignalChan: make(chan bool),
		createdAt:              time.Now(),
	}
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) Identity() ledger.Identity {
	return s.identity
}

func (s *Session) Executor() *ledger.Identity {
	return s.executor
}

func (s *Session) Conn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Watch records an opponent to be told about disconnects.
func (s *Session) Watch(opponent ledger.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opponents[opponent] = struct{}{}
}

func (s *Session) Opponents() []ledger.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	opponents := make([]ledger.Identity, 0, len(s.opponents))
	for id := range s.opponents {
		opponents = append(opponents, id)
	}
	return opponents
}

func (s *Session) onConnErr(err error) LoopCode {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		log.Println("timeout error:", err)
		return ConnLoopRetry
	}

	if websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		log.Println("high server load/traffic error:", err)
		return ConnLoopRetry
	}

	// clients going to background drop without a close frame
	if websocket.IsCloseError(err, websocket.CloseAbnormalClosure) {
		log.Println("abnormal closure error:", err)
		return ConnLoopAbnormalClosureRetry
	}

	if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		log.Println("close error:", err)
		return ConnLoopBreak
	}

	log.Println("unexpected error:", err)
	return ConnLoopBreak
}

// writeToConnWithRetry serializes writers; notifications for this session
// arrive from other sessions' goroutines.
func (s *Session) writeToConnWithRetry(msg interface{}, msgType uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var retries uint8
	for {
		var err error

		switch msgType {
		case MessageTypeJSON:
			err = s.conn.WriteJSON(msg)

		case MessageTypeBytes:
			respBytes, ok := msg.([]byte)
			if !ok {
				return NewConnErr(ConnInvalidMsgType).AddDesc("msg type expected: []byte got invalid")
			}
			err = s.conn.WriteMessage(websocket.TextMessage, respBytes)

		default:
			return NewConnErr(ConnInvalidMsgType).AddDesc("invalid message type to write with retry")
		}

		if err == nil {
			return nil
		}

		switch s.onConnErr(err) {
		case ConnLoopRetry:
			if retries >= maxWriteWsRetries {
				log.Printf("max retries reached for writing to ws [%s]: %s\n", s.conn.RemoteAddr(), err)
				return NewConnErr(ConnLoopBreak)
			}
			retries++
			log.Printf("writing to ws [%s] failed; retrying... (retry no. %d)\n", s.conn.RemoteAddr(), retries)
			time.Sleep(time.Duration(retries*backOffFactor) * time.Second)

		case ConnLoopAbnormalClosureRetry:
			return NewConnErr(ConnLoopAbnormalClosureRetry)

		default:
			return NewConnErr(ConnLoopBreak).AddDesc("breaking write loop due to: " + err.Error())
		}
	}
}

func (s *Session) handleReadFromConnErr(err error, retries uint8) LoopCode {
	switch s.onConnErr(err) {
	case ConnLoopAbnormalClosureRetry:
		return ConnLoopAbnormalClosureRetry

	case ConnLoopRetry:
		if retries >= maxWriteWsRetries {
			return ConnLoopBreak
		}
		log.Printf("failed to read from ws conn [%s]; retrying... (retry no. %d)\n", s.conn.RemoteAddr(), retries)
		time.Sleep(time.Duration(retries*backOffFactor) * time.Second)
		return ConnLoopContinue

	default:
		log.Printf("break ws conn loop [%s] due to: %s\n", s.conn.RemoteAddr(), err)
		return ConnLoopBreak
	}
}

func (s *Session) reconnectionAfterAbnormalClosure(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	close(s.reconnectionSignalChan)
	s.conn = conn
	s.reconnectionSignalChan = make(chan bool)
}

func (s *Session) reconnected() <-chan bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectionSignalChan
}

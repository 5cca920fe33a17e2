package connection

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionManager interface {
	GenerateNewSession(conn *websocket.Conn, identity ledger.Identity, executor *ledger.Identity) *Session
	CleanupPeriodically()

	FindSession(sessionId string) (*Session, error)
	FindSessionByIdentity(identity ledger.Identity) (*Session, error)
	TerminateSession(session *Session)
	ReconnectSession(sessionId string, conn *websocket.Conn) error
	Notify(receiver ledger.Identity, msg interface{}) error

	WriteToSessionConn(session *Session, msg interface{}, msgType uint8) error
	ReadFromSessionConn(session *Session) (int, []byte, error)
}

type BattleshipSessionManager struct {
	cleanupInterval time.Duration
	sessions        map[string]*Session
	byIdentity      map[ledger.Identity]string
	mu              sync.RWMutex
}

func NewBattleshipSessionManager() *BattleshipSessionManager {
	initMapSize := 10

	return &BattleshipSessionManager{
		sessions:        make(map[string]*Session, initMapSize),
		byIdentity:      make(map[ledger.Identity]string, initMapSize),
		cleanupInterval: time.Minute * 20,
	}
}

var _ SessionManager = (*BattleshipSessionManager)(nil)

// GenerateNewSession registers conn. A newer session of the same identity
// takes over its notifications.
func (bsm *BattleshipSessionManager) GenerateNewSession(conn *websocket.Conn, identity ledger.Identity, executor *ledger.Identity) *Session {
	sessionId := base64.RawURLEncoding.EncodeToString([]byte(uuid.New().String()))
	session := NewSession(sessionId, conn, identity, executor)

	bsm.mu.Lock()
	bsm.sessions[sessionId] = session
	bsm.byIdentity[identity] = sessionId
	bsm.mu.Unlock()

	return session
}

func (bsm *BattleshipSessionManager) FindSession(sessionId string) (*Session, error) {
	bsm.mu.RLock()
	defer bsm.mu.RUnlock()

	session, prs := bsm.sessions[sessionId]
	if !prs || session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}
	return session, nil
}

func (bsm *BattleshipSessionManager) FindSessionByIdentity(identity ledger.Identity) (*Session, error) {
	bsm.mu.RLock()
	sessionId, prs := bsm.byIdentity[identity]
	bsm.mu.RUnlock()

	if !prs {
		return nil, fmt.Errorf("%w: identity %s", ErrSessionNotFound, identity)
	}
	return bsm.FindSession(sessionId)
}

func (bsm *BattleshipSessionManager) TerminateSession(session *Session) {
	bsm.mu.Lock()
	defer bsm.mu.Unlock()

	delete(bsm.sessions, session.id)
	if bsm.byIdentity[session.identity] == session.id {
		delete(bsm.byIdentity, session.identity)
	}
}

func (bsm *BattleshipSessionManager) ReconnectSession(sessionId string, conn *websocket.Conn) error {
	session, err := bsm.FindSession(sessionId)
	if err != nil {
		return err
	}
	session.reconnectionAfterAbnormalClosure(conn)
	return nil
}

// Notify pushes msg to the live session of receiver. An offline receiver is
// not an error; it reads the records when it comes back.
func (bsm *BattleshipSessionManager) Notify(receiver ledger.Identity, msg interface{}) error {
	session, err := bsm.FindSessionByIdentity(receiver)
	if err != nil {
		return nil
	}
	return bsm.WriteToSessionConn(session, msg, MessageTypeJSON)
}

// Sessions older than the cleanup interval are assumed dangling and dropped.
func (bsm *BattleshipSessionManager) CleanupPeriodically() {
	for {
		time.Sleep(bsm.cleanupInterval)

		bsm.mu.Lock()
		for id, session := range bsm.sessions {
			if time.Since(session.createdAt) <= bsm.cleanupInterval {
				continue
			}
			delete(bsm.sessions, id)
			if bsm.byIdentity[session.identity] == id {
				delete(bsm.byIdentity, session.identity)
			}
			log.Printf("removed stale session: %s\n", id)
		}
		bsm.mu.Unlock()
	}
}

// HandleAbnormalClosureSession gives a dropped client the grace period to
// reconnect before its opponents are told it is gone.
func (bsm *BattleshipSessionManager) HandleAbnormalClosureSession(s *Session) error {
	opponents := s.Opponents()
	if len(opponents) == 0 {
		return NewConnErr(ConnLoopBreak).AddDesc("no game in progress; invalid session")
	}

	bsm.notifyAll(opponents, NewMessage[NoPayload](CodeOtherPlayerGracePeriod))

	timer := time.NewTimer(gracePeriod)
	defer timer.Stop()

	select {
	case <-timer.C:
		bsm.notifyAll(opponents, NewMessage[NoPayload](CodeOtherPlayerDisconnected))
		log.Printf("session terminated: %s\n", s.id)
		return NewConnErr(ConnLoopBreak).AddDesc("grace period is over for session: " + s.id)

	case <-s.reconnected():
		bsm.notifyAll(opponents, NewMessage[NoPayload](CodeOtherPlayerReconnected))
		log.Printf("player reconnected, session: %s\n", s.id)
		return nil
	}
}

func (bsm *BattleshipSessionManager) notifyAll(receivers []ledger.Identity, msg interface{}) {
	for _, receiver := range receivers {
		if err := bsm.Notify(receiver, msg); err != nil {
			log.Printf("failed to notify %s: %v\n", receiver, err)
		}
	}
}

func (bsm *BattleshipSessionManager) WriteToSessionConn(session *Session, msg interface{}, msgType uint8) error {
	err := session.writeToConnWithRetry(msg, msgType)
	if err == nil {
		return nil
	}

	var connErr ConnErr
	if !errors.As(err, &connErr) {
		return err
	}
	if connErr.Code() == ConnLoopAbnormalClosureRetry {
		if err := bsm.HandleAbnormalClosureSession(session); err != nil {
			return connErr
		}
		return nil
	}
	return connErr
}

func (bsm *BattleshipSessionManager) ReadFromSessionConn(session *Session) (int, []byte, error) {
	var retries uint8

	for {
		messageType, payload, err := session.Conn().ReadMessage()
		if err == nil {
			return messageType, payload, nil
		}

		switch session.handleReadFromConnErr(err, retries) {
		case ConnLoopContinue:
			retries++
			continue

		case ConnLoopAbnormalClosureRetry:
			if err := bsm.HandleAbnormalClosureSession(session); err != nil {
				return -1, []byte{}, err
			}

		default:
			return -1, []byte{}, err
		}
	}
}

// FetchCodeFromMsg extracts the signal code of an incoming frame.
func FetchCodeFromMsg(payload []byte) (uint8, error) {
	var signal Signal
	const randomInvalidCode uint8 = 255

	if err := json.Unmarshal(payload, &signal); err != nil {
		return randomInvalidCode, err
	}
	return signal.Code, nil
}

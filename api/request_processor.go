package api

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	mc "github.com/saeidalz13/battleship-escrow/models/connection"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

const (
	URLQuerySessionIDKeyword string = "sessionID"
	URLQueryIdentityKeyword  string = "identity"
	URLQueryExecutorKeyword  string = "executor"
)

var upgrader = websocket.Upgrader{
	// not a high-latency stream; a short handshake is enough
	HandshakeTimeout: time.Second * 5,
	ReadBufferSize:   2048,
	WriteBufferSize:  2048,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// RequestProcessor serves GET /battleship. Each connection is a session of
// one signer whose frames are decoded into instructions for the Processor.
type RequestProcessor struct {
	sessionManager mc.SessionManager
	processor      *Processor

	// Zero accepts the identity query param without a session token.
	tokenWindow time.Duration
	now         func() time.Time
}

type RequestProcessorOption func(*RequestProcessor)

// WithSignedSessions requires new sessions to present a token signed by
// their identity that lives no longer than window.
func WithSignedSessions(window time.Duration) RequestProcessorOption {
	return func(rp *RequestProcessor) {
		rp.tokenWindow = window
	}
}

func WithClock(now func() time.Time) RequestProcessorOption {
	return func(rp *RequestProcessor) {
		rp.now = now
	}
}

func NewRequestProcessor(sessionManager mc.SessionManager, processor *Processor, opts ...RequestProcessorOption) RequestProcessor {
	rp := RequestProcessor{
		sessionManager: sessionManager,
		processor:      processor,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&rp)
	}
	return rp
}

// MustGetServerIpNet returns the first non-loopback IPv4 network of this
// host. Analytics rows are keyed by it.
func MustGetServerIpNet() net.IPNet {
	ifaces, err := net.Interfaces()
	if err != nil {
		panic(err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			panic(err)
		}

		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip := ipnet.IP; ip.To4() != nil && !ip.IsLoopback() {
				return *ipnet
			}
		}
	}

	panic("ipnet could not be found!")
}

func parseSigner(r *http.Request) (Signer, error) {
	query := r.URL.Query()

	identity, err := ledger.ParseIdentity(query.Get(URLQueryIdentityKeyword))
	if err != nil {
		return Signer{}, err
	}
	signer := DurableSigner(identity)

	if raw := query.Get(URLQueryExecutorKeyword); raw != "" {
		executor, err := ledger.ParseIdentity(raw)
		if err != nil {
			return Signer{}, err
		}
		signer.Executor = &executor
	}
	return signer, nil
}

func (rp RequestProcessor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if sessionId := r.URL.Query().Get(URLQuerySessionIDKeyword); sessionId != "" {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println(err)
			return
		}
		if err := rp.sessionManager.ReconnectSession(sessionId, conn); err != nil {
			msg := mc.NewMessage[mc.NoPayload](mc.CodeReceivedInvalidSessionID)
			msg.AddError(err.Error(), "")
			_ = conn.WriteJSON(msg)
			_ = conn.Close()
		}
		return
	}

	signer, err := parseSigner(r)
	if err != nil {
		http.Error(w, "identity query param must be 32 hex encoded bytes", http.StatusBadRequest)
		return
	}
	if rp.tokenWindow > 0 {
		token := r.URL.Query().Get(URLQueryTokenKeyword)
		if err := verifySessionToken(token, signer, rp.tokenWindow, rp.now()); err != nil {
			log.Printf("rejected session of %s: %v\n", signer.Identity, err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	log.Println("a new connection established\tRemote Addr: ", conn.RemoteAddr().String())
	rp.processSessionRequests(rp.sessionManager.GenerateNewSession(conn, signer.Identity, signer.Executor))
}

func (rp RequestProcessor) processSessionRequests(session *mc.Session) {
	defer func() {
		if conn := session.Conn(); conn != nil {
			conn.Close()
		}
		rp.sessionManager.TerminateSession(session)
	}()

	resp := mc.NewMessage[mc.RespSessionId](mc.CodeSessionID)
	resp.AddPayload(mc.RespSessionId{SessionID: session.Id(), Identity: session.Identity()})
	if err := rp.sessionManager.WriteToSessionConn(session, resp, mc.MessageTypeJSON); err != nil {
		return
	}

	req := NewRequest(rp.processor, rp.sessionManager, session)

	for {
		// A WebSocket frame can be one of 6 types: text=1, binary=2, ping=9, pong=10, close=8 and continuation=0
		_, payload, err := rp.sessionManager.ReadFromSessionConn(session)
		if err != nil {
			return
		}

		if err := rp.sessionManager.WriteToSessionConn(session, req.Handle(payload), mc.MessageTypeJSON); err != nil {
			return
		}
	}
}

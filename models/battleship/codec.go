package battleship

import (
	"encoding/binary"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

// codecVersion increments when a record layout changes. Field order within a
// layout is part of the compatibility contract.
const codecVersion uint8 = 1

// EncodeGame layout:
//
//	version | id u64 | grid u8 | player1 | p2? | revealed1 | revealed2 | next u8 | wager u64 | status u8 | winner? | nonce u8
func EncodeGame(g *Game) []byte {
	out := make([]byte, 0, 96+8*(len(g.RevealedShipsPlayer1)+len(g.RevealedShipsPlayer2)))

	w8 := func(x byte) { out = append(out, x) }
	w64 := func(x uint64) {
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], x)
		out = append(out, tmp[:]...)
	}
	wId := func(id ledger.Identity) { out = append(out, id[:]...) }
	wShips := func(ships []Ship) {
		w8(byte(len(ships)))
		for _, s := range ships {
			out = append(out, s.StartX, s.StartY, s.EndX, s.EndY)
		}
	}
	wBool := func(b bool) {
		if b {
			w8(1)
		} else {
			w8(0)
		}
	}

	w8(codecVersion)
	w64(g.Id)
	w8(g.GridSize)
	wId(g.Player1)
	wBool(g.Player2 != nil)
	if g.Player2 != nil {
		wId(*g.Player2)
	}
	wShips(g.RevealedShipsPlayer1)
	wShips(g.RevealedShipsPlayer2)
	wBool(g.NextMovePlayer1)
	w64(g.Wager)
	w8(byte(g.Status.Kind))
	if g.Status.Kind.hasWinner() {
		wId(*g.Status.Winner)
	}
	w8(g.Nonce)
	return out
}

func DecodeGame(b []byte) (*Game, error) {
	r := &rd{b: b, kind: "game"}
	r.version()

	g := &Game{}
	g.Id = r.u64()
	g.GridSize = r.u8()
	g.Player1 = r.identity()
	if r.flag() {
		p2 := r.identity()
		g.Player2 = &p2
	}
	g.RevealedShipsPlayer1 = r.ships()
	g.RevealedShipsPlayer2 = r.ships()
	g.NextMovePlayer1 = r.flag()
	g.Wager = r.u64()
	g.Status.Kind = StatusKind(r.u8())
	if g.Status.Kind > StatusForfeited {
		r.fail("unknown status")
	}
	if g.Status.Kind.hasWinner() {
		winner := r.identity()
		g.Status.Winner = &winner
	}
	g.Nonce = r.u8()

	if err := r.end(); err != nil {
		return nil, err
	}
	return g, nil
}

// EncodeBoard layout:
//
//	version | game id u64 | owner | nonce u8 | ships (n, 4 bytes each) | attacks (n, 2 bytes each)
func EncodeBoard(b *PlayerBoard) []byte {
	out := make([]byte, 0, 44+4*len(b.Ships)+2*len(b.Attacks))

	var tmp [8]byte
	out = append(out, codecVersion)
	binary.BigEndian.PutUint64(tmp[:], b.GameId)
	out = append(out, tmp[:]...)
	out = append(out, b.Owner[:]...)
	out = append(out, b.Nonce)

	out = append(out, byte(len(b.Ships)))
	for _, s := range b.Ships {
		out = append(out, s.StartX, s.StartY, s.EndX, s.EndY)
	}
	out = append(out, byte(len(b.Attacks)))
	for _, c := range b.Attacks {
		out = append(out, c.X, c.Y)
	}
	return out
}

func DecodeBoard(b []byte) (*PlayerBoard, error) {
	r := &rd{b: b, kind: "board"}
	r.version()

	board := &PlayerBoard{}
	board.GameId = r.u64()
	board.Owner = r.identity()
	board.Nonce = r.u8()
	board.Ships = r.ships()

	n := int(r.u8())
	if n > MaxAttacks {
		r.fail("too many attacks")
	}
	board.Attacks = make([]Coordinates, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		board.Attacks = append(board.Attacks, NewCoordinates(r.u8(), r.u8()))
	}

	if err := r.end(); err != nil {
		return nil, err
	}
	return board, nil
}

// EncodeConfig layout:
//
//	version | authority | vault (16 bytes) | max grid u8 | fee u16 | nonce u8
func EncodeConfig(c *Config) []byte {
	out := make([]byte, 0, 53)
	out = append(out, codecVersion)
	out = append(out, c.Authority[:]...)
	out = append(out, c.Vault[:]...)
	out = append(out, c.MaxGridSize)
	out = binary.BigEndian.AppendUint16(out, c.FeeBps)
	out = append(out, c.Nonce)
	return out
}

func DecodeConfig(b []byte) (*Config, error) {
	r := &rd{b: b, kind: "config"}
	r.version()

	c := &Config{}
	c.Authority = r.identity()
	copy(c.Vault[:], r.bytes(len(c.Vault)))
	c.MaxGridSize = r.u8()
	c.FeeBps = r.u16()
	c.Nonce = r.u8()

	if err := r.end(); err != nil {
		return nil, err
	}
	return c, nil
}

// rd reads big-endian fields from a record. The first failure sticks and
// every later read returns zero values.
type rd struct {
	b    []byte
	i    int
	kind string
	err  error
}

func (r *rd) fail(reason string) {
	if r.err == nil {
		r.err = cerr.ErrCorruptRecord(r.kind, reason)
	}
}

func (r *rd) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.i+n > len(r.b) {
		r.fail("decode overflow")
		return false
	}
	return true
}

func (r *rd) bytes(n int) []byte {
	if !r.need(n) {
		return make([]byte, n)
	}
	v := r.b[r.i : r.i+n]
	r.i += n
	return v
}

func (r *rd) u8() byte {
	return r.bytes(1)[0]
}

func (r *rd) u16() uint16 {
	return binary.BigEndian.Uint16(r.bytes(2))
}

func (r *rd) u64() uint64 {
	return binary.BigEndian.Uint64(r.bytes(8))
}

func (r *rd) flag() bool {
	switch r.u8() {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("invalid flag")
		return false
	}
}

func (r *rd) identity() ledger.Identity {
	var id ledger.Identity
	copy(id[:], r.bytes(ledger.IdentitySize))
	return id
}

func (r *rd) ships() []Ship {
	n := int(r.u8())
	if n > MaxShips {
		r.fail("too many ships")
		return []Ship{}
	}
	ships := make([]Ship, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		raw := r.bytes(4)
		ships = append(ships, NewShip(raw[0], raw[1], raw[2], raw[3]))
	}
	return ships
}

func (r *rd) version() {
	if v := r.u8(); r.err == nil && v != codecVersion {
		r.fail("unsupported version")
	}
}

// end verifies the reader consumed all bytes exactly.
func (r *rd) end() error {
	if r.err == nil && r.i != len(r.b) {
		r.fail("trailing bytes")
	}
	return r.err
}

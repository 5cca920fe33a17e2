package ledger

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Kind names the type of record an address points at.
type Kind string

const (
	KindGame   Kind = "game"
	KindPlayer Kind = "player"
	KindConfig Kind = "config"
	KindVault  Kind = "vault"
	KindWallet Kind = "wallet"
)

// Address is a deterministic record identifier. There is no index:
// records are located by re-deriving their address from kind and keys.
type Address uuid.UUID

// All record addresses live in this name space.
var programNamespace = uuid.MustParse("3f9d6a52-8c1e-5b7a-9e2d-6c4b1a0f7e31")

func (a Address) String() string {
	return uuid.UUID(a).String()
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func ParseAddress(s string) (Address, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Address{}, err
	}
	return Address(u), nil
}

// reserved reports whether an address falls in the range kept for the nil
// namespace; derivation skips those nonces.
func (a Address) reserved() bool {
	return a[0] == 0x00
}

// DeriveWithNonce is the pure function (kind, keys, nonce) -> address.
// Every key is length prefixed so that distinct key tuples never produce the
// same seed bytes.
func DeriveWithNonce(kind Kind, nonce uint8, keys ...[]byte) Address {
	seed := make([]byte, 0, 64)
	seed = appendSeed(seed, []byte(kind))
	for _, key := range keys {
		seed = appendSeed(seed, key)
	}
	seed = append(seed, nonce)
	return Address(uuid.NewSHA1(programNamespace, seed))
}

// Derive returns the canonical address of a record and the nonce that
// produced it, searching from 255 down.
func Derive(kind Kind, keys ...[]byte) (Address, uint8) {
	for nonce := 255; nonce >= 0; nonce-- {
		addr := DeriveWithNonce(kind, uint8(nonce), keys...)
		if !addr.reserved() {
			return addr, uint8(nonce)
		}
	}
	// every nonce landing in the reserved range has probability 2^-2048
	panic("unable to derive a record address")
}

// Verify recomputes an address from a stored nonce.
func Verify(addr Address, kind Kind, nonce uint8, keys ...[]byte) bool {
	return DeriveWithNonce(kind, nonce, keys...) == addr
}

func appendSeed(seed []byte, part []byte) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(len(part)))
	seed = append(seed, tmp[:]...)
	return append(seed, part...)
}

// U64Seed encodes a numeric key the way match ids are encoded in seeds.
func U64Seed(x uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, x)
	return b
}

func GameAddress(gameId uint64) (Address, uint8) {
	return Derive(KindGame, U64Seed(gameId))
}

func BoardAddress(gameId uint64, owner Identity) (Address, uint8) {
	return Derive(KindPlayer, U64Seed(gameId), owner[:])
}

func ConfigAddress() (Address, uint8) {
	return Derive(KindConfig)
}

func VaultAddress() (Address, uint8) {
	return Derive(KindVault)
}

func WalletAddress(owner Identity) (Address, uint8) {
	return Derive(KindWallet, owner[:])
}

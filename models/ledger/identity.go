package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const IdentitySize = 32

// Identity is the public key of a signer (player, authority or executor).
type Identity [IdentitySize]byte

func NewIdentity() Identity {
	var id Identity
	if _, err := rand.Read(id[:]); err != nil {
		panic(err)
	}
	return id
}

func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid identity %q: %w", s, err)
	}
	if len(raw) != IdentitySize {
		return id, fmt.Errorf("invalid identity %q: expected %d bytes got %d", s, IdentitySize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

func (id Identity) IsZero() bool {
	return id == Identity{}
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

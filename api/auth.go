package api

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/saeidalz13/battleship-escrow/models/ledger"
)

const (
	URLQueryTokenKeyword string = "token"

	sessionAudience = "battleship-escrow"
)

var (
	ErrSessionTokenMissing  = errors.New("session token is required")
	ErrSessionTokenInvalid  = errors.New("session token is invalid")
	ErrSessionTokenExpired  = errors.New("session token is expired")
	ErrSessionTokenMismatch = errors.New("session token does not match the signer")
)

// sessionClaims is signed by the private key of the connecting identity.
// The identity doubles as the ed25519 public key that verifies it.
type sessionClaims struct {
	jwt.RegisteredClaims
	Executor string `json:"executor,omitempty"`
}

// verifySessionToken checks that token was signed by signer.Identity within
// window of now, for this service and for the executor the signer asked for.
func verifySessionToken(token string, signer Signer, window time.Duration, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrSessionTokenMissing
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return ed25519.PublicKey(signer.Identity[:]), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionTokenInvalid, err)
	}

	if parsed.Subject != signer.Identity.String() {
		return fmt.Errorf("%w: subject", ErrSessionTokenMismatch)
	}
	if !audienceContains(parsed.Audience, sessionAudience) {
		return fmt.Errorf("%w: audience", ErrSessionTokenMismatch)
	}

	executor := ""
	if signer.Executor != nil {
		executor = signer.Executor.String()
	}
	if parsed.Executor != executor {
		return fmt.Errorf("%w: executor", ErrSessionTokenMismatch)
	}

	if parsed.ExpiresAt == nil || parsed.IssuedAt == nil {
		return fmt.Errorf("%w: exp and iat are required", ErrSessionTokenInvalid)
	}
	exp := parsed.ExpiresAt.Time
	iat := parsed.IssuedAt.Time
	if !exp.After(now) {
		return ErrSessionTokenExpired
	}
	// a token must not outlive the window, nor be minted in the future
	if exp.Sub(iat) > window || iat.After(now.Add(window)) {
		return fmt.Errorf("%w: lifetime exceeds %s", ErrSessionTokenInvalid, window)
	}
	return nil
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// NewSessionToken signs a session token for identity. Clients and tests
// use it to connect when signed sessions are enforced.
func NewSessionToken(key ed25519.PrivateKey, executor *ledger.Identity, issuedAt time.Time, ttl time.Duration) (string, error) {
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok || len(pub) != ledger.IdentitySize {
		return "", errors.New("session key must be ed25519")
	}
	var identity ledger.Identity
	copy(identity[:], pub)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.String(),
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	if executor != nil {
		claims.Executor = executor.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
}

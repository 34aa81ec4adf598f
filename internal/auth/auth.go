package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixil98/go-mudlink/internal/storage"
)

var (
	// ErrInvalidToken means the token is missing, malformed, expired, or
	// signed with the wrong key. Fatal to the connection attempt.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNoIdentity means the token verified but names a player that no
	// longer exists. Fatal to the connection attempt.
	ErrNoIdentity = errors.New("no player record for token")
)

// Claims holds the JWT claims for an authenticated player session.
type Claims struct {
	PlayerId   storage.Identifier `json:"player_id"`
	PlayerName string             `json:"player_name"`
	jwt.RegisteredClaims
}

// Identity is an authenticated player, resolved against the player directory.
// The display name comes from the directory, not the token, so renames take
// effect without reissuing tokens.
type Identity struct {
	ID   storage.Identifier
	Name string
}

// Directory resolves a player id to its current display name.
type Directory interface {
	PlayerName(id storage.Identifier) (string, bool)
}

// Authenticator verifies and mints session tokens.
type Authenticator struct {
	key    []byte
	expiry time.Duration
	dir    Directory
}

// NewAuthenticator creates an authenticator. If secret is empty, a random
// 32-byte key is generated; tokens then do not survive a restart.
func NewAuthenticator(secret string, expiry time.Duration, dir Directory) *Authenticator {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	} else {
		key = make([]byte, 32)
		rand.Read(key)
		slog.Warn("no auth secret configured, using an ephemeral key")
	}

	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	return &Authenticator{
		key:    key,
		expiry: expiry,
		dir:    dir,
	}
}

// Issue mints a token for a player id.
func (a *Authenticator) Issue(id storage.Identifier) (string, error) {
	name, ok := a.dir.PlayerName(id)
	if !ok {
		return "", fmt.Errorf("issuing token: %w: %s", ErrNoIdentity, id)
	}

	now := time.Now()
	claims := Claims{
		PlayerId:   id,
		PlayerName: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			Issuer:    "mudlink",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.key)
}

// Authenticate verifies a token and resolves it to a live identity.
func (a *Authenticator) Authenticate(tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.PlayerId == "" {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}

	name, ok := a.dir.PlayerName(claims.PlayerId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoIdentity, claims.PlayerId)
	}

	return &Identity{ID: claims.PlayerId, Name: name}, nil
}

// GenerateSecret generates a random hex-encoded secret suitable for the
// auth secret config value.
func GenerateSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

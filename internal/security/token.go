package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "brainpulse"

var ErrInvalidToken = errors.New("invalid token")

// TokenClaims are the claims carried by an API bearer token. The subject is
// the user id and the id claim is the backing session id, so logging out
// revokes the token as well.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies API bearer tokens with HMAC-SHA256
type TokenIssuer struct {
	secret []byte
}

// NewTokenIssuer creates a token issuer for the given secret
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

// Issue creates a signed token for a user session
func (i *TokenIssuer) Issue(userID int64, sessionID string, expiresAt time.Time) (string, error) {
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the user id and session id it carries
func (i *TokenIssuer) Parse(raw string) (int64, string, error) {
	claims := &TokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if claims.ID == "" {
		return 0, "", fmt.Errorf("%w: missing session id", ErrInvalidToken)
	}
	return userID, claims.ID, nil
}

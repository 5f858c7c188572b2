package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every reason a token is rejected; callers never
// learn which check failed.
var ErrInvalidToken = errors.New("invalid token")

// tokenSigner issues and verifies HS256 session tokens. The jti ties a token
// to its row in the session table.
type tokenSigner struct {
	secret []byte
	now    func() time.Time
}

func generateJTI() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *tokenSigner) issue(userID string, ttl time.Duration) (token, jti string, issuedAt, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, time.Time{}, err
	}
	issuedAt = s.now().UTC().Truncate(time.Second)
	expiresAt = issuedAt.Add(ttl)
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        jti,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString(s.secret)
	return token, jti, issuedAt, expiresAt, err
}

func (s *tokenSigner) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !t.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

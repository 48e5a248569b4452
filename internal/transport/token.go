package transport

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("resume token invalid")
	ErrExpiredToken = errors.New("resume token expired")
)

const tokenIssuer = "support-router"

// TokenIssuer firma tokens de reanudacion: un cliente solo puede reclamar su clientId
// si presenta el token emitido para ese id.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type resumeClaims struct {
	jwt.RegisteredClaims
}

// NewTokenIssuer usa un secreto aleatorio si secret esta vacio (los tokens no sobreviven reinicios).
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: key, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (t *TokenIssuer) Issue(clientID string) (string, error) {
	if t == nil || strings.TrimSpace(clientID) == "" {
		return "", ErrInvalidToken
	}
	now := t.now()
	claims := resumeClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   clientID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify devuelve el clientId del token.
func (t *TokenIssuer) Verify(token string) (string, error) {
	if t == nil || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	var claims resumeClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
	)
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

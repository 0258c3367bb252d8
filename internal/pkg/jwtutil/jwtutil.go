// Package jwtutil issues and validates the bearer tokens handed out at login.
package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnsupportedAlg     = errors.New("unsupported signing algorithm")
	ErrTokenExpired       = jwt.ErrTokenExpired
	defaultSigningMethod  = jwt.SigningMethodHS256
	supportedSigningNames = map[string]*jwt.SigningMethodHMAC{
		"HS256": jwt.SigningMethodHS256,
		"HS384": jwt.SigningMethodHS384,
		"HS512": jwt.SigningMethodHS512,
	}
)

// Claims carries the principal. Subject holds the username.
type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Signer is bound to one secret and algorithm.
type Signer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
}

func NewSigner(secret, algorithm string, ttl time.Duration) (*Signer, error) {
	method := defaultSigningMethod
	if algorithm != "" {
		m, ok := supportedSigningNames[algorithm]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlg, algorithm)
		}
		method = m
	}
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Signer{secret: []byte(secret), method: method, ttl: ttl}, nil
}

func (s *Signer) TTL() time.Duration {
	return s.ttl
}

func (s *Signer) Issue(userID uint, username string) (string, time.Time, error) {
	return s.IssueAt(time.Now(), userID, username)
}

// IssueAt signs a token whose expiry is now+ttl truncated to whole seconds,
// the resolution of the exp claim.
func (s *Signer) IssueAt(now time.Time, userID uint, username string) (string, time.Time, error) {
	expiresAt := now.Add(s.ttl).Truncate(time.Second)
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token failed: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *Signer) Parse(tokenString string) (*Claims, error) {
	return s.ParseAt(time.Now(), tokenString)
}

// ParseAt validates signature and algorithm, then accepts the token iff
// now is not after its expiry.
func (s *Signer) ParseAt(now time.Time, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	if now.After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if claims.Username == "" {
		claims.Username = claims.Subject
	}
	return claims, nil
}

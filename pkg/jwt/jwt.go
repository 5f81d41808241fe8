package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenNotValidYet      = errors.New("token is not yet valid")
	ErrTokenInvalid          = errors.New("token is invalid")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
)

// --- 核心結構 ---

// Manager issues and verifies operator access tokens.
type Manager struct {
	signer  Signer
	issuer  string
	ttl     time.Duration
	keyFunc jwt.Keyfunc
	methods []string
}

// Claims carries the operator identity. The subject is the operator's user id.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

// Signer defines the interface for signing JWT claims.
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
}

// --- 主要方法 ---

// Option defines a function that can modify JWT claims.
type Option func(*Claims)

// WithExpiresAt sets a specific expiration time for the token.
func WithExpiresAt(t time.Time) Option {
	return func(c *Claims) {
		c.ExpiresAt = jwt.NewNumericDate(t)
	}
}

// WithName sets the display name of the operator.
func WithName(name string) Option {
	return func(c *Claims) {
		c.Name = name
	}
}

// Generate signs a token for subject with role. Tokens expire after the manager's ttl unless overridden.
func (g *Manager) Generate(subject, role string, opts ...Option) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   g.issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Role: role,
	}
	if g.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(g.ttl))
	}

	for _, opt := range opts {
		opt(claims)
	}

	return g.signer.Sign(claims)
}

// Parse validates the token signature, issuer and time window and returns its claims.
func (g *Manager) Parse(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods(g.methods)}
	if g.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(g.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, g.keyFunc, parserOpts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotValidYet
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignatureInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.Subject == "" {
			return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
		}
		return claims, nil
	}

	return nil, ErrTokenInvalid
}

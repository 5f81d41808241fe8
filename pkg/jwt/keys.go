package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// symmetricSigner signs with HS256.
type symmetricSigner struct {
	secret []byte
}

func (s *symmetricSigner) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// asymmetricSigner signs with RS256.
type asymmetricSigner struct {
	privateKey *rsa.PrivateKey
}

func (s *asymmetricSigner) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
}

// NewSymmetric creates a Manager that uses a shared HS256 secret.
func NewSymmetric(secret []byte, issuer string, ttl time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("JWT secret cannot be empty")
	}
	return &Manager{
		signer: &symmetricSigner{secret: secret},
		issuer: issuer,
		ttl:    ttl,
		keyFunc: func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		methods: []string{jwt.SigningMethodHS256.Alg()},
	}, nil
}

// NewAsymmetric creates a Manager that signs with privateKey and verifies with publicKey (RS256).
// A nil private key yields a verify-only manager.
func NewAsymmetric(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, issuer string, ttl time.Duration) (*Manager, error) {
	if publicKey == nil {
		return nil, fmt.Errorf("public key cannot be nil")
	}
	m := &Manager{
		issuer: issuer,
		ttl:    ttl,
		keyFunc: func(token *jwt.Token) (interface{}, error) {
			return publicKey, nil
		},
		methods: []string{jwt.SigningMethodRS256.Alg()},
	}
	if privateKey != nil {
		m.signer = &asymmetricSigner{privateKey: privateKey}
	} else {
		m.signer = verifyOnlySigner{}
	}
	return m, nil
}

type verifyOnlySigner struct{}

func (verifyOnlySigner) Sign(jwt.Claims) (string, error) {
	return "", fmt.Errorf("manager has no private key")
}

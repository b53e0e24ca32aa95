package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed for another use.
	ErrInvalidToken = errors.New("invalid token")
)

// Token use markers embedded as the token_use claim so an access token can
// never be replayed as a refresh token or vice versa.
const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// Subject is the identity payload embedded in signed tokens. Kept minimal so
// token size stays small; the client-facing login echo carries more fields.
type Subject struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
}

// Claims holds the JWT claims for both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	TokenUse  string `json:"token_use"`
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or ES256 (private/public key).
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowF       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on every parse.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// IssueAccess issues a short-lived access JWT carrying the subject.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(sub Subject) (token string, expiresAt time.Time, err error) {
	return p.issue(sub, useAccess, p.accessTTL)
}

// IssueRefresh issues a long-lived refresh JWT carrying the same subject.
func (p *TokenProvider) IssueRefresh(sub Subject) (token string, expiresAt time.Time, err error) {
	return p.issue(sub, useRefresh, p.refreshTTL)
}

func (p *TokenProvider) issue(sub Subject, use string, ttl time.Duration) (string, time.Time, error) {
	now := p.nowF()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.ID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		TokenUse:  use,
	}
	token, err := p.sign(claims)
	return token, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// ValidateAccess parses and validates an access token (signature, exp, iss, aud, token_use).
// Returns the embedded subject.
func (p *TokenProvider) ValidateAccess(tokenString string) (Subject, error) {
	return p.validate(tokenString, useAccess)
}

// ValidateRefresh parses and validates a refresh token (signature, exp, iss, aud, token_use).
// Returns the embedded subject so the caller can re-mint a pair.
func (p *TokenProvider) ValidateRefresh(tokenString string) (Subject, error) {
	return p.validate(tokenString, useRefresh)
}

func (p *TokenProvider) validate(tokenString, use string) (Subject, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithTimeFunc(p.nowF))
	if err != nil {
		return Subject{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Subject{}, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return Subject{}, ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return Subject{}, ErrInvalidToken
	}
	if claims.TokenUse != use {
		return Subject{}, ErrInvalidToken
	}
	return Subject{
		ID:        claims.Subject,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}, nil
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var _ AuthProvider = &JWTAuthProvider{}

const (
	jwtIssuer = "noughts"

	tokenTypeID      = "id"
	tokenTypeRefresh = "refresh"

	// DefaultRefreshTTL is how long a locally issued refresh token stays valid
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// JWTAuthProvider issues and verifies HS256 tokens for local sign-in.
type JWTAuthProvider struct {
	secret     []byte
	ttl        time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type NewJWTAuthProviderOptions struct {
	Secret []byte
	// TTL is the lifetime of ID tokens
	TTL        time.Duration
	RefreshTTL time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

type localClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
	Type string `json:"typ"`
}

func NewJWTAuthProvider(opts NewJWTAuthProviderOptions) (*JWTAuthProvider, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("invalid token ttl: %s", opts.TTL)
	}
	p := &JWTAuthProvider{
		secret:     opts.Secret,
		ttl:        opts.TTL,
		refreshTTL: opts.RefreshTTL,
		now:        opts.Now,
	}
	if p.refreshTTL <= 0 {
		p.refreshTTL = DefaultRefreshTTL
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// TTL returns the lifetime of ID tokens.
func (p *JWTAuthProvider) TTL() time.Duration {
	return p.ttl
}

// IssueToken returns a signed ID token for uid.
func (p *JWTAuthProvider) IssueToken(uid string, name string) (string, error) {
	return p.issue(uid, name, tokenTypeID, p.ttl)
}

// IssueRefreshToken returns a long-lived token that can be exchanged for new
// ID tokens with RefreshToken.
func (p *JWTAuthProvider) IssueRefreshToken(uid string, name string) (string, error) {
	return p.issue(uid, name, tokenTypeRefresh, p.refreshTTL)
}

func (p *JWTAuthProvider) issue(uid string, name string, tokenType string, ttl time.Duration) (string, error) {
	if uid == "" {
		return "", errors.New("uid must not be empty")
	}
	now := p.now()
	claims := localClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: name,
		Type: tokenType,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return token, nil
}

// VerifyToken verifies a locally issued ID token
func (p *JWTAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	return p.verify(idToken, tokenTypeID)
}

// RefreshToken verifies a refresh token and returns its claims.
func (p *JWTAuthProvider) RefreshToken(refreshToken string) (*TokenClaims, error) {
	return p.verify(refreshToken, tokenTypeRefresh)
}

func (p *JWTAuthProvider) verify(tokenString string, tokenType string) (*TokenClaims, error) {
	claims := &localClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("error verifying token: %w", err)
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("error verifying token: expected %s token, got %q", tokenType, claims.Type)
	}
	if claims.Subject == "" {
		return nil, errors.New("error verifying token: missing subject")
	}
	return &TokenClaims{
		UID:  claims.Subject,
		Name: claims.Name,
	}, nil
}

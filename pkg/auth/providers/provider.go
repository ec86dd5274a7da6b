package providers

import "context"

type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

type TokenClaims struct {
	UID string `json:"uid"`
	// Name is the display name, empty when the provider has none
	Name string `json:"name,omitempty"`
}

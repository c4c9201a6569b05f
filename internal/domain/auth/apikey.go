// Package auth holds API key identities for the admin back office. Shopper
// authentication is delegated to the external auth provider and never
// reaches this service.
package auth

import "context"

// RoleAdmin gates the back-office endpoints.
const RoleAdmin = "admin"

// APIKeyInfo holds the identity and role for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Role    string
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

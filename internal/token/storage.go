// Package token resolves hosting platform credentials from the process
// environment.
//
// Tokens live in GIT_TOKEN_* variables, either as a bare token string or as
// a JSON envelope carrying expiry and scope metadata:
//
//	export GIT_TOKEN_GITLAB='glpat-xyz...'
//	export GIT_TOKEN_GITHUB='{"Value":"ghp_abc...","Scope":"repo"}'
//
// Resolve also honors the conventional GITHUB_TOKEN and GITLAB_TOKEN
// variables as fallbacks. An in-memory storage backs tests.
package token

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by token lookups
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenExpired  = errors.New("token has expired")
)

// Token represents an authentication token with metadata
type Token struct {
	// Value is the actual token string
	Value string `json:"Value"`

	// ExpiresAt indicates when the token will expire
	// Zero value means the token does not expire
	ExpiresAt time.Time `json:"ExpiresAt"`

	// Scope defines the permissions granted to this token
	Scope string `json:"Scope"`
}

// Storage is the lookup interface token consumers depend on
type Storage interface {
	// Retrieve gets a token by its key
	// Returns ErrTokenNotFound if the token doesn't exist
	Retrieve(ctx context.Context, key string) (Token, error)
}

// IsExpired checks if a token has expired
func IsExpired(token Token) bool {
	if token.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(token.ExpiresAt)
}

// IsValid performs basic validation of a token
func IsValid(token Token) bool {
	// Only validate that the token has a non-empty value
	return token.Value != ""
}

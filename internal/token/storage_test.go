package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name    string
		token   Token
		expired bool
	}{
		{
			name:    "zero expiry never expires",
			token:   Token{Value: "glpat-abc"},
			expired: false,
		},
		{
			name:    "past expiry",
			token:   Token{Value: "glpat-abc", ExpiresAt: time.Now().Add(-time.Hour)},
			expired: true,
		},
		{
			name:    "future expiry",
			token:   Token{Value: "glpat-abc", ExpiresAt: time.Now().Add(time.Hour)},
			expired: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, IsExpired(tt.token))
		})
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(Token{Value: "ghp_abc"}))
	assert.True(t, IsValid(Token{Value: "ghp_abc", Scope: "repo"}))
	assert.False(t, IsValid(Token{}))
	assert.False(t, IsValid(Token{Scope: "repo"}))
}

package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// envPrefix is the prefix shared by all token environment variables.
const envPrefix = "GIT_TOKEN_"

// EnvStorage reads tokens from environment variables. It is the primary
// storage for headless and CI use. Values may be plain token strings or
// JSON envelopes carrying expiry and scope.
type EnvStorage struct{}

// NewEnvStorage creates a new environment variable-based token storage
func NewEnvStorage() *EnvStorage {
	return &EnvStorage{}
}

// Retrieve gets a token by its key from environment variables. Values that
// are not JSON objects are treated as bare token strings.
func (e *EnvStorage) Retrieve(ctx context.Context, key string) (Token, error) {
	data := os.Getenv(formatEnvKey(key))
	if data == "" {
		return Token{}, ErrTokenNotFound
	}

	token, err := decodeEnvToken(data)
	if err != nil {
		return Token{}, err
	}

	if !IsValid(token) {
		return Token{}, ErrTokenInvalid
	}
	if IsExpired(token) {
		return Token{}, ErrTokenExpired
	}

	return token, nil
}

// formatEnvKey converts a token key into an environment variable name.
// Non-alphanumeric characters become underscores.
func formatEnvKey(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, strings.ToUpper(key))

	return envPrefix + sanitized
}

// decodeEnvToken parses an environment value as either a JSON-encoded Token
// or a bare token string.
func decodeEnvToken(data string) (Token, error) {
	if strings.HasPrefix(strings.TrimSpace(data), "{") {
		var token Token
		if err := json.Unmarshal([]byte(data), &token); err != nil {
			return Token{}, fmt.Errorf("failed to unmarshal token: %w", err)
		}
		return token, nil
	}
	return Token{Value: data}, nil
}

// Resolve looks up a token for the given provider, preferring GIT_TOKEN_*
// storage and falling back to the conventional bare variables GITHUB_TOKEN
// and GITLAB_TOKEN.
func Resolve(ctx context.Context, storage Storage, provider Provider) (Token, error) {
	t, err := storage.Retrieve(ctx, string(provider))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrTokenNotFound) {
		return Token{}, err
	}

	fallback := string(provider) + "_TOKEN"
	if value := os.Getenv(fallback); value != "" {
		return Token{Value: value}, nil
	}
	return Token{}, ErrTokenNotFound
}

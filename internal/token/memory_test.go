package token

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoragePutAndRetrieve(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	want := Token{Value: "ghp_abc", Scope: "repo"}
	require.NoError(t, storage.Put("GITHUB", want))

	got, err := storage.Retrieve(ctx, "GITHUB")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMemoryStorageMissingKey(t *testing.T) {
	storage := NewMemoryStorage()

	_, err := storage.Retrieve(context.Background(), "GITLAB")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMemoryStorageExpiredToken(t *testing.T) {
	storage := NewMemoryStorage()
	expired := Token{Value: "ghp_old", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, storage.Put("GITHUB", expired))

	_, err := storage.Retrieve(context.Background(), "GITHUB")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestMemoryStorageRejectsEmptyValue(t *testing.T) {
	storage := NewMemoryStorage()

	err := storage.Put("GITHUB", Token{Scope: "repo"})
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestMemoryStorageOverwrite(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, storage.Put("GITHUB", Token{Value: "ghp_first"}))
	require.NoError(t, storage.Put("GITHUB", Token{Value: "ghp_second"}))

	got, err := storage.Retrieve(ctx, "GITHUB")
	require.NoError(t, err)
	assert.Equal(t, "ghp_second", got.Value)
}

func TestMemoryStorageBacksResolve(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Put(string(ProviderGitLab), Token{Value: "glpat-seeded"}))

	got, err := Resolve(context.Background(), storage, ProviderGitLab)
	require.NoError(t, err)
	assert.Equal(t, "glpat-seeded", got.Value)
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	storage := NewMemoryStorage()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("KEY_%d", id)
			if err := storage.Put(key, Token{Value: fmt.Sprintf("value-%d", id)}); err != nil {
				t.Errorf("Put(%s) failed: %v", key, err)
				return
			}
			got, err := storage.Retrieve(ctx, key)
			if err != nil {
				t.Errorf("Retrieve(%s) failed: %v", key, err)
				return
			}
			if got.Value != fmt.Sprintf("value-%d", id) {
				t.Errorf("Retrieve(%s) = %q", key, got.Value)
			}
		}(i)
	}
	wg.Wait()
}

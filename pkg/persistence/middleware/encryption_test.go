package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/pathflow/pkg/adapters/memory"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestRunEncryption_Roundtrip(t *testing.T) {
	underlying := memory.NewRunStore()
	key := generateKey(t)
	secure := middleware.NewRunEncryption(middleware.EncryptionConfig{ActiveKey: key})(underlying)

	ctx := context.Background()
	original := &domain.Result{
		RunID:   "run-1",
		Signal:  "login",
		Status:  domain.StatusCompleted,
		Context: domain.NewContext(map[string]any{"secret": "my-secret-sauce"}),
		Trace:   []domain.TraceEntry{{Action: "login", Output: "success"}},
	}

	// 1. Save
	require.NoError(t, secure.Save(ctx, original))

	// 2. Underlying store only sees the envelope
	stored, err := underlying.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, stored.Context.Has("secret"), "secret must be hidden")
	assert.True(t, stored.Context.Has("__encrypted__"))
	assert.Empty(t, stored.Trace)
	assert.Equal(t, domain.StatusCompleted, stored.Status, "status stays visible for monitoring")

	// 3. Load via middleware decrypts
	loaded, err := secure.Load(ctx, "run-1")
	require.NoError(t, err)
	v, _ := loaded.Context.Get("secret")
	assert.Equal(t, "my-secret-sauce", v)
	assert.Equal(t, original.Trace, loaded.Trace)
}

func TestRunEncryption_RejectsPlainResults(t *testing.T) {
	underlying := memory.NewRunStore()
	require.NoError(t, underlying.Save(context.Background(), &domain.Result{RunID: "plain", Context: domain.NewContext(nil)}))

	secure := middleware.NewRunEncryption(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(context.Background(), "plain")
	assert.ErrorContains(t, err, "missing encrypted data envelope")
}

func TestStoreEncryption_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureOld := middleware.NewStoreEncryption(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)

	// 1. Save with OLD key
	require.NoError(t, secureOld.Set(ctx, "token", []byte(`"encrypted-with-old-key"`)))

	raw, err := underlying.Get(ctx, "token")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "encrypted-with-old-key")

	// 2. Load with NEW key (Active) + OLD key (Fallback)
	secureNew := middleware.NewStoreEncryption(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	got, err := secureNew.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, `"encrypted-with-old-key"`, string(got))

	// 3. Save again with NEW key
	require.NoError(t, secureNew.Set(ctx, "token", []byte(`"encrypted-with-new-key"`)))

	// 4. OLD key alone can no longer read it
	_, err = secureOld.Get(ctx, "token")
	assert.Error(t, err)

	keys, err := secureNew.Keys(ctx, "to")
	require.NoError(t, err)
	assert.Equal(t, []string{"token"}, keys)
}

func TestEncryption_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewRunEncryption(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
	assert.Panics(t, func() {
		middleware.NewStoreEncryption(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

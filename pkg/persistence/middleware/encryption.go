package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/aretw0/pathflow/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

func (c EncryptionConfig) mustValidate() {
	if len(c.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
}

type runEncryption struct {
	next   ports.RunStore
	config EncryptionConfig
}

// NewRunEncryption creates a middleware that encrypts run results using AES-GCM.
// Only RunID, Signal, Status and timestamps stay readable in the stored envelope.
func NewRunEncryption(config EncryptionConfig) RunMiddleware {
	config.mustValidate()
	return func(next ports.RunStore) ports.RunStore {
		return &runEncryption{next: next, config: config}
	}
}

func (m *runEncryption) Save(ctx context.Context, result *domain.Result) error {
	plainText, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	sealed, err := seal(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt result: %w", err)
	}

	envelope := &domain.Result{
		RunID:      result.RunID,
		Signal:     result.Signal,
		Status:     result.Status,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Context:    domain.NewContext(map[string]any{envelopeKey: sealed}),
	}
	return m.next.Save(ctx, envelope)
}

func (m *runEncryption) Load(ctx context.Context, runID string) (*domain.Result, error) {
	envelope, err := m.next.Load(ctx, runID)
	if err != nil {
		return nil, err
	}

	var sealed string
	if envelope.Context != nil {
		v, _ := envelope.Context.Get(envelopeKey)
		sealed, _ = v.(string)
	}
	if sealed == "" {
		// Fail secure: a store configured for encryption never returns plain results.
		return nil, errors.New("result is missing encrypted data envelope")
	}

	plainText, err := open(sealed, m.config)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt result: %w", err)
	}

	var result domain.Result
	if err := json.Unmarshal(plainText, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted result: %w", err)
	}
	return &result, nil
}

func (m *runEncryption) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *runEncryption) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

type storeEncryption struct {
	next   ports.KeyValueStore
	config EncryptionConfig
}

// NewStoreEncryption creates a middleware that encrypts key-value documents.
// Keys stay in clear text so prefix listing keeps working.
func NewStoreEncryption(config EncryptionConfig) StoreMiddleware {
	config.mustValidate()
	return func(next ports.KeyValueStore) ports.KeyValueStore {
		return &storeEncryption{next: next, config: config}
	}
}

func (m *storeEncryption) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := m.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var envelope map[string]string
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope[envelopeKey] == "" {
		return nil, fmt.Errorf("value for %q is missing encrypted data envelope", key)
	}

	plainText, err := open(envelope[envelopeKey], m.config)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt value for %q: %w", key, err)
	}
	return plainText, nil
}

func (m *storeEncryption) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := seal(value, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt value for %q: %w", key, err)
	}
	raw, err := json.Marshal(map[string]string{envelopeKey: sealed})
	if err != nil {
		return err
	}
	return m.next.Set(ctx, key, raw)
}

func (m *storeEncryption) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *storeEncryption) Keys(ctx context.Context, prefix string) ([]string, error) {
	return m.next.Keys(ctx, prefix)
}

// Helpers

func seal(plainText, key []byte) (string, error) {
	ciphertext, err := encrypt(plainText, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func open(sealed string, config EncryptionConfig) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	return decryptWithRotation(ciphertext, config.ActiveKey, config.FallbackKeys)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

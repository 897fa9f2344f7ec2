// Package vault encrypts connection credentials at rest and owns the master
// key lifecycle. Keys are derived per-secret from the master key and a random
// salt with argon2id; payloads are sealed with AES-256-GCM, the 16-byte
// authentication tag stored detached from the ciphertext and the IV and salt
// packed into one field. Decryption verifies the tag before releasing any
// output and fails closed on mismatch.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/argon2"

	"github.com/querygate/querygate/internal/qerr"
	"github.com/querygate/querygate/internal/store"
)

const (
	ivSize   = 12
	saltSize = 16
	tagSize  = 16
	keySize  = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4

	masterKeySetting = "vault.master_key"
	pendingSetting   = "vault.rotation_pending"
)

// Encrypt seals plaintext under a key derived from serverSecret and a fresh
// random salt, using a fresh random IV.
func Encrypt(plaintext, serverSecret string) (store.EncryptedSecret, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return store.EncryptedSecret{}, fmt.Errorf("failed to generate iv: %w", err)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return store.EncryptedSecret{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newAEAD(serverSecret, salt)
	if err != nil {
		return store.EncryptedSecret{}, err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return store.EncryptedSecret{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IVSalt:     base64.StdEncoding.EncodeToString(append(append([]byte{}, iv...), salt...)),
		Tag:        base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// Decrypt re-derives the key from the stored salt and opens the payload.
// A tag mismatch (or any malformed field) yields an integrity error and no
// partial plaintext.
func Decrypt(secret store.EncryptedSecret, serverSecret string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(secret.Ciphertext)
	if err != nil {
		return "", qerr.Wrap(qerr.KindIntegrity, err, "malformed ciphertext")
	}
	ivSalt, err := base64.StdEncoding.DecodeString(secret.IVSalt)
	if err != nil {
		return "", qerr.Wrap(qerr.KindIntegrity, err, "malformed iv/salt")
	}
	tag, err := base64.StdEncoding.DecodeString(secret.Tag)
	if err != nil {
		return "", qerr.Wrap(qerr.KindIntegrity, err, "malformed authentication tag")
	}
	if len(ivSalt) != ivSize+saltSize || len(tag) != tagSize {
		return "", qerr.New(qerr.KindIntegrity, "encrypted secret has invalid field lengths")
	}
	iv, salt := ivSalt[:ivSize], ivSalt[ivSize:]

	gcm, err := newAEAD(serverSecret, salt)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, iv, append(append([]byte{}, ciphertext...), tag...), nil)
	if err != nil {
		return "", qerr.New(qerr.KindIntegrity, "credential integrity check failed")
	}
	return string(plaintext), nil
}

func newAEAD(serverSecret string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(serverSecret), salt, argonTime, argonMemory, argonThreads, keySize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize aead: %w", err)
	}
	return gcm, nil
}

// ConstantTimeCompare reports whether a and b are equal without leaking
// timing information about where they differ. Unequal lengths compare false
// immediately; length is not a secret here.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Vault owns the cached master key and the rotation procedure.
// Safe for concurrent use.
type Vault struct {
	store  store.Store
	logger zerolog.Logger

	mu        sync.Mutex
	masterKey string // cached; "" until first loaded
}

// New creates a Vault over the given store.
func New(st store.Store, logger zerolog.Logger) *Vault {
	return &Vault{store: st, logger: logger}
}

// MasterKey returns the persisted master key, generating and persisting a
// fresh high-entropy one on first use.
func (v *Vault) MasterKey(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.masterKeyLocked(ctx)
}

func (v *Vault) masterKeyLocked(ctx context.Context) (string, error) {
	if v.masterKey != "" {
		return v.masterKey, nil
	}
	key, err := v.store.GetSetting(ctx, masterKeySetting)
	if err != nil {
		return "", fmt.Errorf("failed to load master key: %w", err)
	}
	if key == "" {
		key, err = generateKey()
		if err != nil {
			return "", err
		}
		if err := v.store.SetSetting(ctx, masterKeySetting, key); err != nil {
			return "", fmt.Errorf("failed to persist master key: %w", err)
		}
		v.logger.Info().Msg("generated new master key")
	}
	v.masterKey = key
	return key, nil
}

func generateKey() (string, error) {
	raw := make([]byte, keySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// EncryptCredential seals plaintext under the current master key.
func (v *Vault) EncryptCredential(ctx context.Context, plaintext string) (store.EncryptedSecret, error) {
	key, err := v.MasterKey(ctx)
	if err != nil {
		return store.EncryptedSecret{}, err
	}
	return Encrypt(plaintext, key)
}

// DecryptCredential opens a stored secret. During an interrupted rotation a
// record may already be sealed under the journaled pending key, so on an
// integrity failure the pending key is tried before giving up.
func (v *Vault) DecryptCredential(ctx context.Context, secret store.EncryptedSecret) (string, error) {
	key, err := v.MasterKey(ctx)
	if err != nil {
		return "", err
	}
	plaintext, err := Decrypt(secret, key)
	if err == nil {
		return plaintext, nil
	}
	if !qerr.Is(err, qerr.KindIntegrity) {
		return "", err
	}
	pending, perr := v.store.GetSetting(ctx, pendingSetting)
	if perr != nil || pending == "" {
		return "", err
	}
	return Decrypt(secret, pending)
}

// RotateMasterKey re-encrypts every stored connection credential under a new
// master key, then commits the new key as canonical. The rotation is
// journaled: the new key is persisted as pending before any record changes,
// each pass tolerates records already sealed under the pending key, and the
// journal is cleared only after the new key is committed — so a crash at any
// point resumes cleanly via ResumeRotation.
func (v *Vault) RotateMasterKey(ctx context.Context) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	oldKey, err := v.masterKeyLocked(ctx)
	if err != nil {
		return 0, err
	}
	newKey, err := generateKey()
	if err != nil {
		return 0, err
	}
	if err := v.store.SetSetting(ctx, pendingSetting, newKey); err != nil {
		return 0, fmt.Errorf("failed to journal rotation: %w", err)
	}
	return v.rotateLocked(ctx, oldKey, newKey)
}

// ResumeRotation completes a rotation that was interrupted mid-flight.
// It is a no-op when no rotation journal is present.
func (v *Vault) ResumeRotation(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	pending, err := v.store.GetSetting(ctx, pendingSetting)
	if err != nil {
		return fmt.Errorf("failed to read rotation journal: %w", err)
	}
	if pending == "" {
		return nil
	}
	v.logger.Warn().Msg("resuming interrupted master key rotation")
	oldKey, err := v.masterKeyLocked(ctx)
	if err != nil {
		return err
	}
	_, err = v.rotateLocked(ctx, oldKey, pending)
	return err
}

func (v *Vault) rotateLocked(ctx context.Context, oldKey, newKey string) (int, error) {
	conns, err := v.store.ListConnections(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list connections for rotation: %w", err)
	}

	rotated := 0
	for _, conn := range conns {
		plaintext, err := Decrypt(conn.Secret, oldKey)
		if err != nil {
			// Already sealed under the new key by an earlier interrupted pass.
			if _, nerr := Decrypt(conn.Secret, newKey); nerr == nil {
				continue
			}
			return rotated, qerr.Wrap(qerr.KindIntegrity, err, "connection %s cannot be decrypted under either rotation key", conn.ID)
		}
		reencrypted, err := Encrypt(plaintext, newKey)
		if err != nil {
			return rotated, fmt.Errorf("failed to re-encrypt connection %s: %w", conn.ID, err)
		}
		conn.Secret = reencrypted
		if err := v.store.UpdateConnection(ctx, conn); err != nil {
			return rotated, fmt.Errorf("failed to persist rotated connection %s: %w", conn.ID, err)
		}
		rotated++
	}

	if err := v.store.SetSetting(ctx, masterKeySetting, newKey); err != nil {
		return rotated, fmt.Errorf("failed to commit rotated master key: %w", err)
	}
	if err := v.store.SetSetting(ctx, pendingSetting, ""); err != nil {
		return rotated, fmt.Errorf("failed to clear rotation journal: %w", err)
	}
	v.masterKey = newKey
	v.logger.Info().Int("connections", rotated).Msg("master key rotated")
	return rotated, nil
}

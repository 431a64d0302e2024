package sealer

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	localEnvelopeVersion = 1
	localKeySize         = 32
)

// DeriveKey stretches a passphrase into an AES-256 key with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, localKeySize)
}

// Local seals with AES-256-GCM under keys held in process memory. The key id
// is written into the envelope and authenticated as additional data, so a
// ciphertext cannot be re-labelled to another key.
//
// Envelope: version(1) | len(keyID)(1) | keyID | nonce(12) | ciphertext+tag.
type Local struct {
	keys map[string]cipher.AEAD
}

// NewLocal builds a keyring from raw 32-byte keys.
func NewLocal(keys map[string][]byte) (*Local, error) {
	l := &Local{keys: make(map[string]cipher.AEAD, len(keys))}
	for id, key := range keys {
		if id == "" || len(id) > 255 {
			return nil, fmt.Errorf("bad key id %q", id)
		}
		if len(key) != localKeySize {
			return nil, fmt.Errorf("key %q: want %d bytes, got %d", id, localKeySize, len(key))
		}

		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		l.keys[id] = aead
	}
	return l, nil
}

// NewLocalFromPassphrases derives every key from its passphrase and the
// shared salt.
func NewLocalFromPassphrases(passphrases map[string]string, salt []byte) (*Local, error) {
	keys := make(map[string][]byte, len(passphrases))
	for id, p := range passphrases {
		keys[id] = DeriveKey([]byte(p), salt)
	}
	defer func() {
		for _, k := range keys {
			common.WipeByteArray(k)
		}
	}()
	return NewLocal(keys)
}

func (l *Local) Seal(_ context.Context, keyID string, plaintext []byte) (string, error) {
	aead, ok := l.keys[keyID]
	if !ok {
		return "", fmt.Errorf("key %q: %w", keyID, common.ErrKeyUnavailable)
	}

	nonce := common.GenerateRandByteArray(aead.NonceSize())

	env := make([]byte, 0, 2+len(keyID)+len(nonce)+len(plaintext)+aead.Overhead())
	env = append(env, localEnvelopeVersion, byte(len(keyID)))
	env = append(env, keyID...)
	env = append(env, nonce...)
	env = aead.Seal(env, nonce, plaintext, []byte(keyID))

	return base64.StdEncoding.EncodeToString(env), nil
}

func (l *Local) Unseal(_ context.Context, ciphertext string) ([]byte, error) {
	env, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(env) < 2 || env[0] != localEnvelopeVersion {
		return nil, fmt.Errorf("malformed envelope: %w", common.ErrIntegrity)
	}

	idLen := int(env[1])
	if len(env) < 2+idLen {
		return nil, fmt.Errorf("malformed envelope: %w", common.ErrIntegrity)
	}
	keyID := string(env[2 : 2+idLen])
	rest := env[2+idLen:]

	aead, ok := l.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("key %q not in keyring: %w", keyID, common.ErrIntegrity)
	}
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("malformed envelope: %w", common.ErrIntegrity)
	}

	nonce, ct := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ct, []byte(keyID))
	if err != nil {
		return nil, fmt.Errorf("open: %w", common.ErrIntegrity)
	}
	return plaintext, nil
}

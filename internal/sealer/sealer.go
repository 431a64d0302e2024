// Package sealer encrypts the inbound bearer token before it is stashed in
// the session store and decrypts it for the completion handler.
//
// Seal fails with common.ErrKeyUnavailable when the key cannot be used.
// Unseal fails with common.ErrIntegrity when the ciphertext was tampered with
// or was sealed under a key this sealer no longer holds. Ciphertext is always
// standard base64.
package sealer

import (
	"context"
)

type Sealer interface {
	Seal(ctx context.Context, keyID string, plaintext []byte) (string, error)
	Unseal(ctx context.Context, ciphertext string) ([]byte, error)
}

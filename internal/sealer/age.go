package sealer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/dmitrijs2005/kusogate/internal/common"
)

// Age seals to X25519 recipients. Each key id maps to one identity; Unseal
// tries every identity it holds, so a ciphertext for a dropped identity
// fails as an integrity error.
type Age struct {
	recipients map[string]age.Recipient
	identities []age.Identity
}

func NewAge(identities map[string]*age.X25519Identity) *Age {
	a := &Age{recipients: make(map[string]age.Recipient, len(identities))}
	for id, ident := range identities {
		a.recipients[id] = ident.Recipient()
		a.identities = append(a.identities, ident)
	}
	return a
}

// ParseAgeIdentities parses AGE-SECRET-KEY-1... strings keyed by key id.
func ParseAgeIdentities(keys map[string]string) (map[string]*age.X25519Identity, error) {
	out := make(map[string]*age.X25519Identity, len(keys))
	for id, s := range keys {
		ident, err := age.ParseX25519Identity(s)
		if err != nil {
			return nil, fmt.Errorf("age identity %q: %w", id, err)
		}
		out[id] = ident
	}
	return out, nil
}

func (a *Age) Seal(_ context.Context, keyID string, plaintext []byte) (string, error) {
	r, ok := a.recipients[keyID]
	if !ok {
		return "", fmt.Errorf("age recipient %q: %w", keyID, common.ErrKeyUnavailable)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, r)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (a *Age) Unseal(_ context.Context, ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", common.ErrIntegrity)
	}
	if len(a.identities) == 0 {
		return nil, fmt.Errorf("no age identities: %w", common.ErrIntegrity)
	}

	r, err := age.Decrypt(bytes.NewReader(raw), a.identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w: %w", common.ErrIntegrity, err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w: %w", common.ErrIntegrity, err)
	}
	return plaintext, nil
}

package sealer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/dmitrijs2005/kusogate/internal/common"
)

// KMSAPI is the subset of *kms.Client used by KMS.
type KMSAPI interface {
	Encrypt(ctx context.Context, in *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// encryptionContext is bound into every ciphertext; KMS refuses to decrypt
// without the same context.
var encryptionContext = map[string]string{"purpose": "kuso-oauth-session"}

// KMS seals with AWS KMS symmetric keys. The key id may be a key id, ARN
// or alias.
type KMS struct {
	client KMSAPI
}

func NewKMS(client KMSAPI) *KMS {
	return &KMS{client: client}
}

func (k *KMS) Seal(ctx context.Context, keyID string, plaintext []byte) (string, error) {
	if keyID == "" {
		return "", fmt.Errorf("empty key id: %w", common.ErrKeyUnavailable)
	}

	out, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(keyID),
		Plaintext:         plaintext,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return "", mapKMSError("kms encrypt", err)
	}
	return base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}

func (k *KMS) Unseal(ctx context.Context, ciphertext string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", common.ErrIntegrity)
	}

	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    blob,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, mapKMSError("kms decrypt", err)
	}
	return out.Plaintext, nil
}

func mapKMSError(op string, err error) error {
	var (
		notFound     *types.NotFoundException
		disabled     *types.DisabledException
		invalidState *types.KMSInvalidStateException
		unavailable  *types.KeyUnavailableException
		keyUsage     *types.InvalidKeyUsageException
		badBlob      *types.InvalidCiphertextException
		wrongKey     *types.IncorrectKeyException
	)

	switch {
	case errors.As(err, &badBlob), errors.As(err, &wrongKey):
		return fmt.Errorf("%s: %w: %w", op, common.ErrIntegrity, err)
	case errors.As(err, &notFound), errors.As(err, &disabled), errors.As(err, &invalidState),
		errors.As(err, &unavailable), errors.As(err, &keyUsage):
		return fmt.Errorf("%s: %w: %w", op, common.ErrKeyUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

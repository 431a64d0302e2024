package sealer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKMS "encrypts" by prefixing the key id, enough to check the request
// plumbing and the error mapping.
type fakeKMS struct {
	encErr error
	decErr error

	lastEnc *kms.EncryptInput
	lastDec *kms.DecryptInput
}

func (f *fakeKMS) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	f.lastEnc = in
	if f.encErr != nil {
		return nil, f.encErr
	}
	blob := append([]byte(aws.ToString(in.KeyId)+":"), in.Plaintext...)
	return &kms.EncryptOutput{CiphertextBlob: blob, KeyId: in.KeyId}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.lastDec = in
	if f.decErr != nil {
		return nil, f.decErr
	}
	_, pt, _ := bytes.Cut(in.CiphertextBlob, []byte(":"))
	return &kms.DecryptOutput{Plaintext: pt}, nil
}

func TestKMS_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeKMS{}
	k := NewKMS(fake)

	ct, err := k.Seal(ctx, "alias/kuso-oauth", []byte("user-token"))
	require.NoError(t, err)
	assert.Equal(t, "alias/kuso-oauth", aws.ToString(fake.lastEnc.KeyId))
	assert.Equal(t, "kuso-oauth-session", fake.lastEnc.EncryptionContext["purpose"])

	pt, err := k.Unseal(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, "user-token", string(pt))
	assert.Equal(t, fake.lastEnc.EncryptionContext, fake.lastDec.EncryptionContext)
}

func TestKMS_SealErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", &types.NotFoundException{Message: aws.String("x")}, common.ErrKeyUnavailable},
		{"disabled", &types.DisabledException{Message: aws.String("x")}, common.ErrKeyUnavailable},
		{"pending deletion", &types.KMSInvalidStateException{Message: aws.String("x")}, common.ErrKeyUnavailable},
		{"unavailable", &types.KeyUnavailableException{Message: aws.String("x")}, common.ErrKeyUnavailable},
		{"key usage", &types.InvalidKeyUsageException{Message: aws.String("x")}, common.ErrKeyUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := NewKMS(&fakeKMS{encErr: tt.err})
			_, err := k.Seal(context.Background(), "alias/kuso", []byte("x"))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewKMS(&fakeKMS{}).Seal(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestKMS_UnsealErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewKMS(&fakeKMS{}).Unseal(ctx, "%%%")
	assert.ErrorIs(t, err, common.ErrIntegrity)

	_, err = NewKMS(&fakeKMS{decErr: &types.InvalidCiphertextException{Message: aws.String("x")}}).Unseal(ctx, "AAAA")
	assert.ErrorIs(t, err, common.ErrIntegrity)

	_, err = NewKMS(&fakeKMS{decErr: &types.IncorrectKeyException{Message: aws.String("x")}}).Unseal(ctx, "AAAA")
	assert.ErrorIs(t, err, common.ErrIntegrity)

	_, err = NewKMS(&fakeKMS{decErr: errors.New("throttled")}).Unseal(ctx, "AAAA")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrIntegrity)
	assert.NotErrorIs(t, err, common.ErrKeyUnavailable)
}

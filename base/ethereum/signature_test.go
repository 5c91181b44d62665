package ethereum

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestValidateMsgSignature(t *testing.T) {
	req := require.New(t)

	key, pub, err := GenerateKey()
	req.NoError(err)
	signer := crypto.PubkeyToAddress(*pub).Hex()

	message := []byte("an auction keeper was here")
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	req.NoError(err)
	sig[crypto.RecoveryIDOffset] += 27

	ok, err := ValidateMsgSignature(message, hexutil.Encode(sig), signer)
	req.NoError(err)
	req.True(ok)

	ok, err = ValidateMsgSignature([]byte("different message"), hexutil.Encode(sig), signer)
	req.NoError(err)
	req.False(ok)
}

func TestECRecoverAcceptsBothVEncodings(t *testing.T) {
	req := require.New(t)

	key, pub, err := GenerateKey()
	req.NoError(err)
	want := crypto.PubkeyToAddress(*pub)

	digest := crypto.Keccak256([]byte("digest"))
	sig, err := crypto.Sign(digest, key)
	req.NoError(err)

	got, err := ECRecover(digest, sig)
	req.NoError(err)
	req.Equal(want, got)

	sig[crypto.RecoveryIDOffset] += 27
	got, err = ECRecover(digest, sig)
	req.NoError(err)
	req.Equal(want, got)
}

func TestECRecoverRejectsBadLength(t *testing.T) {
	_, err := ECRecover(crypto.Keccak256([]byte("digest")), []byte{1, 2, 3})
	require.Error(t, err)
}

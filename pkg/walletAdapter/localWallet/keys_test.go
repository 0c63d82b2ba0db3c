package localWallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rfc8032Seed   = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	rfc8032Public = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
	testMnemonic  = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

func TestParsePrivateKey(t *testing.T) {
	for _, in := range []string{
		rfc8032Seed,
		"0x" + rfc8032Seed,
		"ed25519-priv-0x" + rfc8032Seed,
		"  0x" + rfc8032Seed + "\n",
	} {
		key, err := ParsePrivateKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, rfc8032Public, hex.EncodeToString(key.Public().(ed25519.PublicKey)))
	}

	_, err := ParsePrivateKey("0x1234")
	assert.ErrorContains(t, err, "want 32 bytes")

	_, err = ParsePrivateKey("not hex")
	assert.Error(t, err)
}

func TestAddressFromPublicKey(t *testing.T) {
	pub, err := hex.DecodeString(rfc8032Public)
	require.NoError(t, err)
	assert.Equal(t,
		"0x63c5215e87770d17b9f4cd47c777e322f4eb152cfd2054c1080fd9d57c48913b",
		AddressFromPublicKey(pub),
	)
}

func TestDerivePath(t *testing.T) {
	// SLIP-0010 ed25519 test vector 1
	seed, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)

	assert.Equal(t,
		"2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7",
		hex.EncodeToString(derivePath(seed, nil)),
	)
	assert.Equal(t,
		"68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3",
		hex.EncodeToString(derivePath(seed, []uint32{0})),
	)
}

func TestKeyFromMnemonic(t *testing.T) {
	first, err := KeyFromMnemonic(testMnemonic, 0)
	require.NoError(t, err)
	again, err := KeyFromMnemonic("  "+testMnemonic+"  ", 0)
	require.NoError(t, err)
	second, err := KeyFromMnemonic(testMnemonic, 1)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.NotEqual(t, first, second)

	_, err = KeyFromMnemonic("abandon abandon abandon", 0)
	assert.EqualError(t, err, "invalid mnemonic")
}

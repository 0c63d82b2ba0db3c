package localWallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/sha3"
)

const (
	hardenedOffset = 0x80000000
	aptosCoinType  = 637

	// Ed25519 single-key authentication scheme byte appended before hashing.
	ed25519Scheme = 0x00
)

// ParsePrivateKey accepts a 32-byte Ed25519 seed as 0x-hex, optionally with
// the "ed25519-priv-" prefix used by Aptos key exports.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "ed25519-priv-")
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	seed, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid private key: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// KeyFromMnemonic derives the key at m/44'/637'/account'/0'/0', the path used by Aptos wallets.
func KeyFromMnemonic(mnemonic string, account uint32) (ed25519.PrivateKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	k := derivePath(seed, []uint32{44, aptosCoinType, account, 0, 0})
	return ed25519.NewKeyFromSeed(k), nil
}

// derivePath implements SLIP-0010 hardened-only derivation for Ed25519.
func derivePath(seed []byte, path []uint32) []byte {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	i := mac.Sum(nil)
	key, chainCode := i[:32], i[32:]

	for _, index := range path {
		data := make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, index+hardenedOffset)

		mac = hmac.New(sha512.New, chainCode)
		mac.Write(data)
		i = mac.Sum(nil)
		key, chainCode = i[:32], i[32:]
	}
	return key
}

// AddressFromPublicKey returns the account address of a single Ed25519 key:
// sha3-256(public key || scheme).
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{ed25519Scheme})
	return hexutil.Encode(h.Sum(nil))
}

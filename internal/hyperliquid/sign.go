package hyperliquid

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs exchange actions with a secp256k1 wallet key.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// NewSigner parses a hex-encoded private key (with or without the 0x
// prefix) and derives the wallet address.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	privateKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
	}, nil
}

// Address returns the checksummed wallet address for this key.
func (s *Signer) Address() string {
	return s.address
}

// SignAction hashes the action together with the nonce and signs the
// digest, returning an r/s/v signature for the exchange envelope.
func (s *Signer) SignAction(action any, nonce int64) (Signature, error) {
	actionBytes, err := json.Marshal(action)
	if err != nil {
		return Signature{}, fmt.Errorf("marshal action: %w", err)
	}

	nonceBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(nonceBytes, uint64(nonce))

	hash := crypto.Keccak256Hash(actionBytes, nonceBytes)

	sig, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return Signature{}, fmt.Errorf("sign action: %w", err)
	}

	// go-ethereum returns 65 bytes: r (32) || s (32) || recovery id (1).
	return Signature{
		R: "0x" + hex.EncodeToString(sig[:32]),
		S: "0x" + hex.EncodeToString(sig[32:64]),
		V: int(sig[64]) + 27,
	}, nil
}

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// ExchangeKeySize is the length of an X25519 key.
	ExchangeKeySize = curve25519.PointSize

	nonceSize = 12
	tagSize   = 16

	sealInfo = "river-sealed-input-v1"
)

// ExchangeKey is an X25519 public key. The enclave publishes one so parties
// can encrypt their figures to it.
type ExchangeKey [ExchangeKeySize]byte

// ExchangePrivateKey is an X25519 private scalar.
type ExchangePrivateKey [ExchangeKeySize]byte

// GenerateExchangeKeyPair generates a fresh X25519 key pair.
func GenerateExchangeKeyPair() (ExchangeKey, ExchangePrivateKey, error) {
	var priv ExchangePrivateKey
	var pub ExchangeKey

	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return pub, priv, err
	}

	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return pub, priv, err
	}
	copy(pub[:], p)
	return pub, priv, nil
}

// String returns the hex encoding of the key.
func (k ExchangeKey) String() string {
	return hex.EncodeToString(k[:])
}

func (k ExchangeKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ExchangeKey) UnmarshalText(text []byte) error {
	parsed, err := ParseExchangeKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseExchangeKey decodes a hex-encoded X25519 public key.
func ParseExchangeKey(s string) (ExchangeKey, error) {
	var k ExchangeKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("invalid exchange key hex: %w", err)
	}
	if len(raw) != ExchangeKeySize {
		return k, errors.New("invalid exchange key size")
	}
	copy(k[:], raw)
	return k, nil
}

// Seal encrypts plaintext to recipient. The output is
// ephemeral pubkey (32) || nonce (12) || ciphertext+tag.
// aad is authenticated but not encrypted; callers bind the negotiation
// id and role into it so a sealed figure cannot be replayed elsewhere.
func Seal(recipient ExchangeKey, plaintext, aad []byte) ([]byte, error) {
	ephPub, ephPriv, err := GenerateExchangeKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}

	gcm, err := sealingAEAD(ephPriv, recipient, ephPub)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, ExchangeKeySize+nonceSize+len(plaintext)+tagSize)
	out = append(out, ephPub[:]...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, aad), nil
}

// Open decrypts a message produced by Seal.
func Open(recipient ExchangePrivateKey, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < ExchangeKeySize+nonceSize+tagSize {
		return nil, errors.New("sealed message too short")
	}

	var ephPub ExchangeKey
	copy(ephPub[:], sealed[:ExchangeKeySize])
	nonce := sealed[ExchangeKeySize : ExchangeKeySize+nonceSize]
	ciphertext := sealed[ExchangeKeySize+nonceSize:]

	gcm, err := sealingAEAD(recipient, ephPub, ephPub)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// sealingAEAD derives the AES-256-GCM instance for one sealed box. The
// ephemeral key is mixed into the HKDF salt so every box gets its own key.
func sealingAEAD(priv ExchangePrivateKey, peer ExchangeKey, ephemeral ExchangeKey) (cipher.AEAD, error) {
	shared, err := curve25519.X25519(priv[:], peer[:])
	if err != nil {
		return nil, fmt.Errorf("X25519: %w", err)
	}

	key, err := DeriveKey(shared, ephemeral[:], []byte(sealInfo))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// DeriveKey expands secret into a 32 byte key with HKDF-SHA256.
func DeriveKey(secret, salt, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return key, nil
}

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// EncryptionVersion identifies the payload protocol version.
	EncryptionVersion = 1

	// Key sizes
	KeySize   = 32 // AES-256
	NonceSize = 12 // GCM standard
	TagSize   = 16 // GCM tag

	// PBKDF2 parameters
	DefaultIterations = 100000
	MinSaltSize       = 16
)

// Errors
var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	ErrInvalidKey        = errors.New("invalid key size")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrKeyMismatch       = errors.New("passphrase does not match device key")
)

// PayloadKeyInfo contains key derivation parameters advertised by the
// device during pairing.
type PayloadKeyInfo struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`            // Base64 encoded
	Check   string `json:"check,omitempty"` // Hex SHA-256 of the derived key
}

// CryptoProvider handles all cryptographic operations.
type CryptoProvider struct {
	iterations int
}

// NewProvider creates a crypto provider.
func NewProvider() Provider {
	return &CryptoProvider{
		iterations: DefaultIterations,
	}
}

// DeriveKey derives the payload key from the pairing passphrase. The
// passphrase is NFC-normalized first so the same characters typed on
// different platforms derive the same key.
func (p *CryptoProvider) DeriveKey(passphrase string, info PayloadKeyInfo) ([]byte, error) {
	if info.Version != EncryptionVersion {
		return nil, fmt.Errorf("unsupported encryption version: %d", info.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(info.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("salt too short: %d bytes", len(salt))
	}

	key := pbkdf2.Key(
		[]byte(norm.NFC.String(passphrase)),
		salt,
		p.iterations,
		KeySize,
		sha256.New,
	)

	return key, nil
}

// KeyCheck returns the hex SHA-256 of a derived payload key. Devices
// publish it alongside the derivation parameters so a mistyped
// passphrase is caught before any payload is fetched.
func KeyCheck(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// VerifyKey compares a derived key against the check value in the key
// info. Key info without a check value verifies nothing; older devices
// do not publish one.
func VerifyKey(key []byte, info PayloadKeyInfo) error {
	if info.Check == "" {
		return nil
	}
	if KeyCheck(key) != info.Check {
		return ErrKeyMismatch
	}
	return nil
}

// EncryptData encrypts plaintext using AES-GCM.
// Returns: nonce || ciphertext || tag.
func (p *CryptoProvider) EncryptData(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, NonceSize+len(ciphertext))
	copy(result[:NonceSize], nonce)
	copy(result[NonceSize:], ciphertext)

	return result, nil
}

// DecryptData decrypts ciphertext using AES-GCM.
func (p *CryptoProvider) DecryptData(ciphertext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	// Minimum size: nonce + tag
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	nonce := ciphertext[:NonceSize]
	ciphertextWithTag := ciphertext[NonceSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	// aead.Open expects ciphertext+tag combined
	plaintext, err := aead.Open(nil, nonce, ciphertextWithTag, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

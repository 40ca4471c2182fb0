package crypto

// Provider defines the interface for payload cryptography. Devices with
// end-to-end encryption enabled wrap each day's record in AES-GCM keyed
// from the pairing passphrase.
type Provider interface {
	// DeriveKey derives the payload key from the pairing passphrase.
	DeriveKey(passphrase string, info PayloadKeyInfo) ([]byte, error)

	// EncryptData encrypts plaintext using AES-GCM.
	EncryptData(plaintext, key []byte) ([]byte, error)

	// DecryptData decrypts ciphertext using AES-GCM.
	DecryptData(ciphertext, key []byte) ([]byte, error)
}

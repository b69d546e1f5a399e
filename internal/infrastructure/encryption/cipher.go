package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Supported algorithm names, as written into Envelope.Algorithm
const (
	AlgorithmAES256GCM         = "aes-256-gcm"
	AlgorithmXChaCha20Poly1305 = "xchacha20-poly1305"
	// AlgorithmDevHMAC is the development fallback. It only protects integrity:
	// the plaintext is stored hex-encoded. Never allowed in production.
	AlgorithmDevHMAC = "dev-hmac-sha256"
)

const (
	// KeySize is the size of every derived symmetric key
	KeySize = 32
	// TagSize is the authentication tag size of every supported algorithm
	TagSize = 16

	devHMACIVSize = 16
)

// Cipher is a single authenticated-encryption algorithm.
// Seal returns ciphertext and tag separately so they can be written as
// "ciphertext:tag" into the envelope.
type Cipher interface {
	Name() string
	IVSize() int
	Seal(key, iv, plaintext, aad []byte) (ciphertext, tag []byte, err error)
	Open(key, iv, ciphertext, tag, aad []byte) ([]byte, error)
}

// aeadCipher adapts a cipher.AEAD constructor to the Cipher interface
type aeadCipher struct {
	name    string
	ivSize  int
	newAEAD func(key []byte) (cipher.AEAD, error)
}

func (c aeadCipher) Name() string { return c.name }
func (c aeadCipher) IVSize() int  { return c.ivSize }

func (c aeadCipher) Seal(key, iv, plaintext, aad []byte) ([]byte, []byte, error) {
	aead, err := c.aead(key, iv)
	if err != nil {
		return nil, nil, err
	}
	sealed := aead.Seal(nil, iv, plaintext, aad)
	split := len(sealed) - aead.Overhead()
	return sealed[:split], sealed[split:], nil
}

func (c aeadCipher) Open(key, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	aead, err := c.aead(key, iv)
	if err != nil {
		return nil, err
	}
	if len(tag) != aead.Overhead() {
		return nil, fmt.Errorf("%w: tag must be %d bytes", ErrMalformedEnvelope, aead.Overhead())
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return plaintext, nil
}

func (c aeadCipher) aead(key, iv []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrInvalidKey, KeySize)
	}
	if len(iv) != c.ivSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrMalformedEnvelope, c.ivSize)
	}
	aead, err := c.newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", c.name, err)
	}
	return aead, nil
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// devHMACCipher keeps the envelope format working when no real cipher is
// configured. Ciphertext is the plaintext itself; the tag is a truncated
// HMAC-SHA256 over iv, aad and plaintext.
type devHMACCipher struct{}

func (devHMACCipher) Name() string { return AlgorithmDevHMAC }
func (devHMACCipher) IVSize() int  { return devHMACIVSize }

func (c devHMACCipher) Seal(key, iv, plaintext, aad []byte) ([]byte, []byte, error) {
	if err := c.check(key, iv); err != nil {
		return nil, nil, err
	}
	out := make([]byte, len(plaintext))
	copy(out, plaintext)
	return out, devTag(key, iv, plaintext, aad), nil
}

func (c devHMACCipher) Open(key, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	if err := c.check(key, iv); err != nil {
		return nil, err
	}
	if len(tag) != TagSize {
		return nil, fmt.Errorf("%w: tag must be %d bytes", ErrMalformedEnvelope, TagSize)
	}
	if !hmac.Equal(devTag(key, iv, ciphertext, aad), tag) {
		return nil, fmt.Errorf("%w: hmac mismatch", ErrAuthenticationFailed)
	}
	out := make([]byte, len(ciphertext))
	copy(out, ciphertext)
	return out, nil
}

func (devHMACCipher) check(key, iv []byte) error {
	if len(key) != KeySize {
		return fmt.Errorf("%w: key must be %d bytes", ErrInvalidKey, KeySize)
	}
	if len(iv) != devHMACIVSize {
		return fmt.Errorf("%w: iv must be %d bytes", ErrMalformedEnvelope, devHMACIVSize)
	}
	return nil
}

func devTag(key, iv, plaintext, aad []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(iv)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(aad)))
	mac.Write(n[:])
	mac.Write(aad)
	mac.Write(plaintext)
	return mac.Sum(nil)[:TagSize]
}

// AES256GCM returns the default AES-256-GCM cipher (12-byte IV).
func AES256GCM() Cipher {
	return aeadCipher{name: AlgorithmAES256GCM, ivSize: 12, newAEAD: newAESGCM}
}

// XChaCha20Poly1305 returns the XChaCha20-Poly1305 cipher (24-byte IV).
func XChaCha20Poly1305() Cipher {
	return aeadCipher{name: AlgorithmXChaCha20Poly1305, ivSize: chacha20poly1305.NonceSizeX, newAEAD: chacha20poly1305.NewX}
}

// DevHMAC returns the integrity-only development fallback.
func DevHMAC() Cipher {
	return devHMACCipher{}
}

// CipherByName resolves a registered algorithm. An empty name resolves to
// AES-256-GCM, which is what envelopes written without an algorithm used.
func CipherByName(name string) (Cipher, error) {
	switch name {
	case "", AlgorithmAES256GCM:
		return AES256GCM(), nil
	case AlgorithmXChaCha20Poly1305:
		return XChaCha20Poly1305(), nil
	case AlgorithmDevHMAC:
		return DevHMAC(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

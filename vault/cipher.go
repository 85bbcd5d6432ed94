package vault

import (
	"crypto/rand"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a per-file encryption key in bytes.
const KeySize = chacha20poly1305.KeySize

// GenerateKey returns a fresh random key. Each file gets its own key so
// compromising one never exposes another file's plaintext.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generate key: %v", ErrCrypto, err)
	}
	return key, nil
}

// Encrypt seals plaintext with XChaCha20-Poly1305. The random nonce is
// prepended to the returned ciphertext.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key: %v", ErrCrypto, err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %v", ErrCrypto, err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt. Authentication failure,
// a wrong key, or a truncated payload all return ErrCrypto, never a
// storage error.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key: %v", ErrCrypto, err)
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrCrypto)
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt: %v", ErrCrypto, err)
	}
	return plaintext, nil
}

// allowedContentTypes is the upload allow-list. Sniffing runs against
// the plaintext bytes; the client-declared filename and content type
// are never consulted.
var allowedContentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
	"image/png",
	"image/jpeg",
	"image/gif",
}

// SniffContentType detects the payload type from its magic bytes and
// returns the canonical MIME string, or ErrUnsupportedType when the
// detected type is outside the allow-list.
func SniffContentType(data []byte) (string, error) {
	detected := mimetype.Detect(data)
	for _, allowed := range allowedContentTypes {
		if detected.Is(allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected.String())
}

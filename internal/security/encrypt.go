package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/fernet/fernet-go"
)

// Cipher protects message bodies at rest.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(enc string) (string, error)
}

// Plaintext stores bodies as they are.
type Plaintext struct{}

func (Plaintext) Encrypt(plain string) (string, error) { return plain, nil }
func (Plaintext) Decrypt(enc string) (string, error)   { return enc, nil }

// NewCipher returns an AES-GCM Encryptor, or Plaintext when key is empty.
func NewCipher(key string, legacyKeys []string) (Cipher, error) {
	if key == "" {
		return Plaintext{}, nil
	}
	return NewEncryptor([]byte(key), legacyKeys)
}

// Encryptor seals bodies with AES-256-GCM under a SHA-256 derived key.
// Bodies written with a Fernet key (the current one or a legacy one) still decrypt.
type Encryptor struct {
	aead       cipher.AEAD
	fernetKeys []*fernet.Key
}

func NewEncryptor(key []byte, legacyKeys []string) (*Encryptor, error) {
	if len(key) == 0 {
		return nil, errors.New("encryption key must not be empty")
	}
	sum := sha256.Sum256(key)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	var fernetKeys []*fernet.Key
	for _, raw := range append([]string{string(key)}, legacyKeys...) {
		if fk := parseFernetKey(raw); fk != nil {
			fernetKeys = append(fernetKeys, fk)
		}
	}
	return &Encryptor{aead: aead, fernetKeys: fernetKeys}, nil
}

func parseFernetKey(raw string) *fernet.Key {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	key, err := fernet.DecodeKey(trimmed)
	if err != nil {
		return nil
	}
	return key
}

func (e *Encryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err == nil && len(raw) >= e.aead.NonceSize() {
		nonce, sealed := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
		if plain, err := e.aead.Open(nil, nonce, sealed, nil); err == nil {
			return string(plain), nil
		}
	}

	if len(e.fernetKeys) > 0 {
		if plain := fernet.VerifyAndDecrypt([]byte(enc), 0, e.fernetKeys); plain != nil {
			return string(plain), nil
		}
	}
	return "", errors.New("failed to decrypt message payload")
}

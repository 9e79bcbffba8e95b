// Package cryptox implements field-level encryption for sensitive user
// attributes and one-way credential hashing.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultSalt is the fixed PBKDF2 salt used to derive the field key.
	DefaultSalt = "indiec-salt-2024"

	// MinSecretLength is the minimum accepted master secret length.
	MinSecretLength = 32

	pbkdf2Iterations = 10000
	keyLength        = 32
	ivLength         = aes.BlockSize
)

var (
	ErrWeakKey    = errors.New("master secret must be at least 32 characters")
	ErrDecryption = errors.New("decryption failed")
)

// DecryptionError describes why a stored value could not be decrypted.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return "decryption failed: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

var encryptedPattern = regexp.MustCompile(`(?i)^[0-9a-f]+:[0-9a-f]+$`)

// DeriveKey stretches masterSecret into a 32-byte AES key with
// PBKDF2-HMAC-SHA256.
func DeriveKey(masterSecret, salt string) ([]byte, error) {
	if len(masterSecret) < MinSecretLength {
		return nil, ErrWeakKey
	}
	return pbkdf2.Key([]byte(masterSecret), []byte(salt), pbkdf2Iterations, keyLength, sha256.New), nil
}

// FieldCipher encrypts individual string fields with AES-256-CBC. The key is
// derived once at construction; a FieldCipher is safe for concurrent use.
type FieldCipher struct {
	key []byte
}

// NewFieldCipher derives the field key from masterSecret using DefaultSalt.
func NewFieldCipher(masterSecret string) (*FieldCipher, error) {
	return NewFieldCipherWithSalt(masterSecret, DefaultSalt)
}

func NewFieldCipherWithSalt(masterSecret, salt string) (*FieldCipher, error) {
	key, err := DeriveKey(masterSecret, salt)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{key: key}, nil
}

// EncryptField returns hex(iv) + ":" + hex(ciphertext) using a fresh random IV.
func (c *FieldCipher) EncryptField(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct), nil
}

// EncryptOptional encrypts *plaintext, passing nil through untouched.
func (c *FieldCipher) EncryptOptional(plaintext *string) (*string, error) {
	if plaintext == nil {
		return nil, nil
	}
	s, err := c.EncryptField(*plaintext)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DecryptField reverses EncryptField. Any malformed input yields a
// *DecryptionError.
func (c *FieldCipher) DecryptField(stored string) (string, error) {
	ivHex, ctHex, ok := strings.Cut(stored, ":")
	if !ok {
		return "", &DecryptionError{Reason: "missing separator"}
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", &DecryptionError{Reason: "invalid iv encoding", Err: err}
	}
	if len(iv) != ivLength {
		return "", &DecryptionError{Reason: "invalid iv length"}
	}

	ct, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", &DecryptionError{Reason: "invalid ciphertext encoding", Err: err}
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", &DecryptionError{Reason: "ciphertext is not block aligned"}
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", &DecryptionError{Reason: "cipher init", Err: err}
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	pt, err = pkcs7Unpad(pt, aes.BlockSize)
	if err != nil {
		return "", &DecryptionError{Reason: "bad padding", Err: err}
	}
	return string(pt), nil
}

// IsEncrypted reports whether value looks like EncryptField output. It is a
// shape check only and is used when migrating legacy plaintext rows.
func IsEncrypted(value string) bool {
	return len(value) > 32 && encryptedPattern.MatchString(value)
}

// ComputeSearchHash returns hex(sha256(lower(plaintext))), used for
// equality lookups on encrypted columns.
func ComputeSearchHash(plaintext string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(plaintext)))
	return hex.EncodeToString(sum[:])
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding size")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return b[:len(b)-n], nil
}

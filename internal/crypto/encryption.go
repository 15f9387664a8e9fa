package crypto2

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

// 加密参数常量
const (
	// Scrypt 参数 (N=2^17, r=8, p=1)
	ScryptN      = 1 << 17 // 131072
	ScryptR      = 8
	ScryptP      = 1
	ScryptKeyLen = 32

	// Argon2id 参数
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2KeyLen  = 32
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed: authentication error")
	ErrEmptySeed         = errors.New("encryption seed is empty")
	ErrInvalidKeyLength  = errors.New("sealing key must be 32 bytes")
)

// Sealer encrypts wallet key material before it reaches the database.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from the configured seed (Scrypt then Argon2id).
// The salt is the SHA-256 of the seed so the same seed always opens the same store.
func NewSealer(seed string) (*Sealer, error) {
	if seed == "" {
		return nil, ErrEmptySeed
	}
	raw := []byte(seed)
	key, err := GenerateEncryptKey(raw, Hash256(raw))
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// NewSealerWithKey skips derivation; key must already be 32 bytes.
func NewSealerWithKey(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeyLength
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealer{key: k}, nil
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	return EncryptGCM(plaintext, s.key)
}

func (s *Sealer) Open(ciphertext []byte) ([]byte, error) {
	return DecryptGCM(ciphertext, s.key)
}

// GenerateEncryptKey derives an encryption key using Scrypt + Argon2id
// 双重密钥派生：Scrypt 抗 ASIC，Argon2id 抗 GPU
func GenerateEncryptKey(password, salt []byte) ([]byte, error) {
	scryptKey, err := scrypt.Key(password, salt, ScryptN, ScryptR, ScryptP, ScryptKeyLen)
	if err != nil {
		return nil, err
	}
	defer Zero(scryptKey)
	return argon2.IDKey(scryptKey, salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen), nil
}

// EncryptGCM encrypts data using AES-256-GCM (authenticated encryption)
// Returns: nonce (12 bytes) + ciphertext + tag (16 bytes)
func EncryptGCM(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptGCM decrypts data using AES-256-GCM (authenticated encryption)
func DecryptGCM(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrInvalidCiphertext
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertext = ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// Zero overwrites b in place.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

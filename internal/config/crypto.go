package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"os"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

var gcm cipher.AEAD

// InitCrypto loads CRYPTO_KEY, which must be exactly 32 bytes (AES-256).
func InitCrypto() {
	if err := SetCryptoKey([]byte(os.Getenv("CRYPTO_KEY"))); err != nil {
		panic("CRYPTO_KEY must be 32 bytes")
	}
}

func SetCryptoKey(key []byte) error {
	if len(key) != 32 {
		return aes.KeySizeError(len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	gcm = aead
	return nil
}

func Encrypt(text string) (string, error) {
	if gcm == nil {
		return "", errors.New("crypto not initialized")
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(text), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func Decrypt(encoded string) (string, error) {
	if gcm == nil {
		return "", errors.New("crypto not initialized")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", ErrCiphertextTooShort
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

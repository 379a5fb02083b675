package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// parseEncryptionKey decodes the configured key material.
func parseEncryptionKey(key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key is not configured")
	}

	// If the key is base64 encoded, decode it
	keyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		// If decoding fails, use the key as is (assuming it's already bytes)
		return []byte(key), nil
	}

	// Ensure the key is 32 bytes for AES-256
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d bytes", len(keyBytes))
	}

	return keyBytes, nil
}

// EncryptData encrypts the given data with AES-256-GCM under the supplied
// key. Used for TOTP secrets at rest.
func EncryptData(data, encryptionKey string) (string, error) {
	if data == "" {
		return "", nil
	}

	key, err := parseEncryptionKey(encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to parse encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(data), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptData decrypts data produced by EncryptData under the same key.
func DecryptData(encryptedData, encryptionKey string) (string, error) {
	if encryptedData == "" {
		return "", nil
	}

	key, err := parseEncryptionKey(encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to parse encryption key: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher block: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt data: %w", err)
	}

	return string(plaintext), nil
}

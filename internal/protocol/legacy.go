// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// Legacy (v001–v003) operators share a common key shape: the single `key`
// argument to EncryptString/DecryptString is encKey(32 bytes) ||
// authKey(32 bytes, empty for v001 which is unauthenticated) rather than a
// standalone per-item key. Unlike v004, legacy versions have no items-key
// indirection (spec.md §4.1 only describes per-item keys for v004); content
// is encrypted directly under key material derived from the RootKey.

func splitLegacyKey(key []byte, needAuth bool) (encKey, authKey []byte, err error) {
	if needAuth {
		if len(key) != 64 {
			return nil, nil, fmt.Errorf("legacy authenticated key must be 64 bytes (enc||auth), got %d", len(key))
		}
		return key[:32], key[32:], nil
	}
	if len(key) != 32 {
		return nil, nil, fmt.Errorf("legacy unauthenticated key must be 32 bytes, got %d", len(key))
	}
	return key, nil, nil
}

func cbcEncrypt(plaintext string, encKey []byte) (ivB64, ctB64 string, err error) {
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", "", fmt.Errorf("new cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return base64.StdEncoding.EncodeToString(iv), base64.StdEncoding.EncodeToString(ct), nil
}

func cbcDecrypt(ivB64, ctB64 string, encKey []byte) (string, error) {
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrAuthFailed
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", ErrAuthFailed
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(unpadded), nil
}

func hmacAuthHash(authKey []byte, parts ...string) string {
	mac := hmac.New(sha256.New, authKey)
	mac.Write([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(authKey []byte, expectedHex string, parts ...string) bool {
	got := hmacAuthHash(authKey, parts...)
	return hmac.Equal([]byte(got), []byte(expectedHex))
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded data length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}

// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/halvard/notesync/internal/keys"
)

// v004Operator implements the authoritative protocol version (spec.md
// §4.1): Argon2id key derivation, XChaCha20-Poly1305 content encryption.
type v004Operator struct {
	argonMemoryKiB uint32
	argonTime      uint32
	argonThreads   uint8
}

// NewV004 constructs the v004 operator with the parameters spec.md §4.1
// mandates: 64 MiB memory, 5 iterations, 1 lane. DeriveRootKey asks
// Argon2id for 64 bytes of output.
func NewV004() Operator {
	return &v004Operator{
		argonMemoryKiB: 64 * 1024,
		argonTime:      5,
		argonThreads:   1,
	}
}

func (o *v004Operator) Version() Version { return Version004 }

// DeriveRootKey implements spec.md §4.1 v004: salt =
// SHA256(identifier:pw_nonce), Argon2id -> 64 bytes, split into a 32-byte
// masterKey and a 32-byte serverPassword.
func (o *v004Operator) DeriveRootKey(password string, params keys.KeyParams) (*keys.RootKey, error) {
	if params.Identifier == "" || params.PwNonce == "" {
		return nil, fmt.Errorf("v004 key derivation requires identifier and pw_nonce")
	}

	saltInput := params.Identifier + ":" + params.PwNonce
	saltSum := sha256.Sum256([]byte(saltInput))
	salt := saltSum[:]

	out := argon2.IDKey([]byte(password), salt, o.argonTime, o.argonMemoryKiB, o.argonThreads, 64)

	return &keys.RootKey{
		Version:        keys.Version004,
		MasterKey:      append([]byte(nil), out[:32]...),
		ServerPassword: append([]byte(nil), out[32:64]...),
		Params:         params,
	}, nil
}

// EncryptString implements spec.md §4.1/§6: XChaCha20-Poly1305 with a
// 24-byte random nonce, framed as "004:<nonce>:<ciphertext+tag>:<aad>"
// (all three fields base64url, AAD the UTF-8 of aad.String()).
func (o *v004Operator) EncryptString(plaintext string, key []byte, aad AAD) (string, error) {
	if len(key) != chacha20poly1305.KeySize {
		return "", fmt.Errorf("v004 encrypt: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("v004 encrypt: new aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("v004 encrypt: generate nonce: %w", err)
	}

	aadBytes := []byte(aad.String())
	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), aadBytes)

	return strings.Join([]string{
		string(Version004),
		base64.URLEncoding.EncodeToString(nonce),
		base64.URLEncoding.EncodeToString(ciphertext),
		base64.URLEncoding.EncodeToString(aadBytes),
	}, ":"), nil
}

// DecryptString reverses EncryptString, verifying that the embedded AAD
// matches aad (spec.md §4.1 decryption pipeline step 4: "verify AAD").
func (o *v004Operator) DecryptString(ciphertext string, key []byte, aad AAD) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 4 || Version(parts[0]) != Version004 {
		return "", fmt.Errorf("v004 decrypt: malformed framing")
	}

	nonce, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("v004 decrypt: decode nonce: %w", err)
	}
	ct, err := base64.URLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("v004 decrypt: decode ciphertext: %w", err)
	}
	embeddedAAD, err := base64.URLEncoding.DecodeString(parts[3])
	if err != nil {
		return "", fmt.Errorf("v004 decrypt: decode aad: %w", err)
	}
	if string(embeddedAAD) != aad.String() {
		return "", ErrAuthFailed
	}

	if len(key) != chacha20poly1305.KeySize {
		return "", fmt.Errorf("v004 decrypt: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("v004 decrypt: new aead: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ct, embeddedAAD)
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(plaintext), nil
}

// GenerateItemKey returns a fresh random 32-byte per-item key (spec.md
// §4.1: "Per-item key: fresh 32-byte random value, encrypted under the
// current items-key").
func GenerateItemKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate item key: %w", err)
	}
	return key, nil
}

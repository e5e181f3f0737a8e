// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// RootKey is derived from password + KeyParams (spec.md §3). It is never
// persisted in plaintext; it is either held in process memory for the
// session, or wrapped with a passcode-derived key via WrapWithPasscode.
type RootKey struct {
	Version Version

	// MasterKey wraps items keys (32 bytes).
	MasterKey []byte

	// ServerPassword is the only proof of password sent to the server
	// (32 bytes for v004; legacy versions use shorter/different material).
	ServerPassword []byte

	// DataAuthenticationKey is present for v<=003 content authentication.
	DataAuthenticationKey []byte

	Params KeyParams
}

// WrappedRootKey is the on-disk representation of a RootKey wrapped by a
// passcode-derived key (spec.md §3: "either held in process memory or
// wrapped by a passcode-derived key").
type WrappedRootKey struct {
	Blob string // base64(nonce || ciphertext) of the JSON-encoded RootKey material
	Salt string // base64 salt used to derive the wrapping key from the passcode
}

// passcodeWrappingKey derives a 32-byte AES key from a local passcode using
// PBKDF2-HMAC-SHA3-256. A local passcode is a much weaker secret than the
// account password, but it only has to resist someone with access to the
// device's storage, not a remote attacker — hence a lighter KDF than the
// account-password derivation in internal/protocol.
func passcodeWrappingKey(passcode string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passcode), salt, 10_000, 32, sha3.New256)
}

// WrapWithPasscode encrypts rk's key material under a key derived from
// passcode, for local storage alongside the undecryptable-items record
// (spec.md §4.5 step 5: "wrapping with current passcode if present").
func WrapWithPasscode(rk *RootKey, passcode string) (*WrappedRootKey, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate wrap salt: %w", err)
	}
	key := passcodeWrappingKey(passcode, salt)

	plaintext := encodeRootKey(rk)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	blob := gcm.Seal(nonce, nonce, plaintext, nil)

	return &WrappedRootKey{
		Blob: base64.StdEncoding.EncodeToString(blob),
		Salt: base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// UnwrapWithPasscode reverses WrapWithPasscode.
func UnwrapWithPasscode(w *WrappedRootKey, passcode string) (*RootKey, error) {
	salt, err := base64.StdEncoding.DecodeString(w.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(w.Blob)
	if err != nil {
		return nil, fmt.Errorf("decode blob: %w", err)
	}
	key := passcodeWrappingKey(passcode, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("wrapped root key blob too short")
	}
	nonce, ct := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap root key: wrong passcode or corrupt blob: %w", err)
	}
	return decodeRootKey(plaintext)
}

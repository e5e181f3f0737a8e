// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"

	"github.com/halvard/notesync/internal/keys"
)

// v001Operator implements spec.md §4.1 v001: the weakest legacy variant,
// with unauthenticated encryption. Framing:
// "001:<uuid>:<iv>:<ciphertext>" — no auth_hash field.
type v001Operator struct{}

// NewV001 constructs the v001 legacy operator (decrypt-only).
func NewV001() Operator { return &v001Operator{} }

const v001Iterations = 1_000

func (o *v001Operator) Version() Version { return Version001 }

func (o *v001Operator) DeriveRootKey(password string, params keys.KeyParams) (*keys.RootKey, error) {
	if params.PwSalt == "" {
		return nil, fmt.Errorf("v001 key derivation requires pw_salt")
	}
	out := pbkdf2.Key([]byte(password), []byte(params.PwSalt), v001Iterations, 64, sha3.New256)

	return &keys.RootKey{
		Version:        keys.Version001,
		MasterKey:      append([]byte(nil), out[:32]...),
		ServerPassword: append([]byte(nil), out[32:64]...),
		Params:         params,
	}, nil
}

func (o *v001Operator) EncryptString(string, []byte, AAD) (string, error) {
	return "", ErrEncryptionUnsupported
}

// DecryptString performs no authentication check: spec.md explicitly calls
// out v001 as unauthenticated. A corrupted ciphertext may still decrypt to
// garbage rather than fail, matching the historical behavior this version
// is kept around to read.
func (o *v001Operator) DecryptString(ciphertext string, key []byte, aad AAD) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 4 || Version(parts[0]) != Version001 {
		return "", fmt.Errorf("v001 decrypt: malformed framing")
	}
	uuidField, ivB64, ctB64 := parts[1], parts[2], parts[3]
	if uuidField != aad.UUID {
		return "", ErrAuthFailed
	}

	encKey, _, err := splitLegacyKey(key, false)
	if err != nil {
		return "", err
	}
	return cbcDecrypt(ivB64, ctB64, encKey)
}

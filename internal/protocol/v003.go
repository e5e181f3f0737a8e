// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"crypto/sha512"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/halvard/notesync/internal/keys"
)

// v003Operator implements spec.md §4.1 v003: PBKDF2-SHA512, 110,000
// iterations, 768-bit output split into masterKey + serverPassword +
// dataAuthenticationKey. Content framing:
// "003:<auth_hash>:<uuid>:<iv>:<ciphertext>".
type v003Operator struct{}

// NewV003 constructs the v003 legacy operator (decrypt-only).
func NewV003() Operator { return &v003Operator{} }

const v003Iterations = 110_000

func (o *v003Operator) Version() Version { return Version003 }

func (o *v003Operator) DeriveRootKey(password string, params keys.KeyParams) (*keys.RootKey, error) {
	if params.PwNonce == "" {
		return nil, fmt.Errorf("v003 key derivation requires pw_nonce")
	}
	salt := []byte(params.Identifier + ":" + params.PwNonce)
	out := pbkdf2.Key([]byte(password), salt, v003Iterations, 96, sha512.New)

	return &keys.RootKey{
		Version:               keys.Version003,
		MasterKey:             append([]byte(nil), out[:32]...),
		ServerPassword:        append([]byte(nil), out[32:64]...),
		DataAuthenticationKey: append([]byte(nil), out[64:96]...),
		Params:                params,
	}, nil
}

// EncryptString is unsupported: spec.md §4.1 "the library ... encrypts
// only with its latest (004)".
func (o *v003Operator) EncryptString(string, []byte, AAD) (string, error) {
	return "", ErrEncryptionUnsupported
}

// DecryptString verifies the embedded HMAC auth_hash before decrypting, per
// spec.md's "AES-256-CBC + HMAC-SHA256" description. key must be
// encKey(32)||authKey(32); aad.UUID supplies the uuid folded into both the
// framing and the MAC input.
func (o *v003Operator) DecryptString(ciphertext string, key []byte, aad AAD) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 5 || Version(parts[0]) != Version003 {
		return "", fmt.Errorf("v003 decrypt: malformed framing")
	}
	authHash, uuidField, ivB64, ctB64 := parts[1], parts[2], parts[3], parts[4]
	if uuidField != aad.UUID {
		return "", ErrAuthFailed
	}

	encKey, authKey, err := splitLegacyKey(key, true)
	if err != nil {
		return "", err
	}

	if !verifyHMAC(authKey, authHash, uuidField, ivB64, ctB64) {
		return "", ErrAuthFailed
	}

	return cbcDecrypt(ivB64, ctB64, encKey)
}

// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"

	"github.com/halvard/notesync/internal/keys"
)

// v002Operator implements spec.md §4.1 v002: a weaker-KDF legacy variant,
// decrypt-only. Content framing mirrors v003:
// "002:<auth_hash>:<uuid>:<iv>:<ciphertext>".
type v002Operator struct{}

// NewV002 constructs the v002 legacy operator (decrypt-only).
func NewV002() Operator { return &v002Operator{} }

const v002Iterations = 3_000

func (o *v002Operator) Version() Version { return Version002 }

func (o *v002Operator) DeriveRootKey(password string, params keys.KeyParams) (*keys.RootKey, error) {
	if params.PwSalt == "" {
		return nil, fmt.Errorf("v002 key derivation requires pw_salt")
	}
	out := pbkdf2.Key([]byte(password), []byte(params.PwSalt), v002Iterations, 96, sha3.New256)

	return &keys.RootKey{
		Version:               keys.Version002,
		MasterKey:             append([]byte(nil), out[:32]...),
		ServerPassword:        append([]byte(nil), out[32:64]...),
		DataAuthenticationKey: append([]byte(nil), out[64:96]...),
		Params:                params,
	}, nil
}

func (o *v002Operator) EncryptString(string, []byte, AAD) (string, error) {
	return "", ErrEncryptionUnsupported
}

func (o *v002Operator) DecryptString(ciphertext string, key []byte, aad AAD) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 5 || Version(parts[0]) != Version002 {
		return "", fmt.Errorf("v002 decrypt: malformed framing")
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

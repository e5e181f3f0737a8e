// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"
)

// unencryptedPrefix is the content-string prefix used by payloads that
// explicitly opt out of encryption (spec.md §4.1 "Payload `000`
// unencrypted format"): an MFA secret stored during setup, or a decrypted
// local backup.
const unencryptedPrefix = "000"

// EncodeUnencrypted renders content as a "000"-prefixed JSON content
// string. Always succeeds for JSON-marshalable content.
func EncodeUnencrypted(content map[string]any) (string, error) {
	body, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encode unencrypted content: %w", err)
	}
	return unencryptedPrefix + string(body), nil
}

// DecodeUnencrypted reverses EncodeUnencrypted. Decrypting a "000" payload
// always succeeds (spec.md §4.1): there is no key material or
// authentication involved.
func DecodeUnencrypted(ciphertext string) (map[string]any, error) {
	if len(ciphertext) < 3 || ciphertext[:3] != unencryptedPrefix {
		return nil, fmt.Errorf("not a 000-prefixed unencrypted content string")
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(ciphertext[3:]), &content); err != nil {
		return nil, fmt.Errorf("decode unencrypted content: %w", err)
	}
	return content, nil
}

// IsUnencrypted reports whether ciphertext carries the "000" prefix.
func IsUnencrypted(ciphertext string) bool {
	return len(ciphertext) >= 3 && ciphertext[:3] == unencryptedPrefix
}

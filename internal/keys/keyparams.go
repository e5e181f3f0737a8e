// SPDX-License-Identifier: Apache-2.0

// Package keys implements the key hierarchy of spec.md §3–§4.1: KeyParams
// (how to re-derive a root key from a password), RootKey (the password
// derived key that wraps items keys), and ItemsKey (the per-user symmetric
// key that wraps individual items' per-item keys).
package keys

// Version mirrors protocol.Version without importing it, to avoid a cycle
// (protocol imports keys to build RootKey/ItemsKey values).
type Version string

const (
	Version001 Version = "001"
	Version002 Version = "002"
	Version003 Version = "003"
	Version004 Version = "004"
)

// KeyParams carries everything needed to re-derive a RootKey from a
// password (spec.md §3).
type KeyParams struct {
	Version    Version
	Identifier string // email

	// PwNonce is used by v003/v004 to build the Argon2id/PBKDF2 salt.
	PwNonce string

	// PwSalt is the literal salt for legacy (<=002) derivation.
	PwSalt string

	// PwCost is the legacy iteration-count knob; SupportsPasswordDerivationCost
	// in the protocol package decides whether a given cost is acceptable for
	// a version.
	PwCost int
}

// ParamsFromAuthParams reconstructs a KeyParams from a payload's AuthParams
// map (spec.md §4.5 step 2: an items-key's "embedded params" travel
// alongside its ciphertext as unencrypted auth_params, so they are
// readable even when the payload itself cannot be decrypted).
func ParamsFromAuthParams(m map[string]any) KeyParams {
	kp := KeyParams{}
	if v, ok := m["version"].(string); ok {
		kp.Version = Version(v)
	}
	if v, ok := m["identifier"].(string); ok {
		kp.Identifier = v
	}
	if v, ok := m["pw_nonce"].(string); ok {
		kp.PwNonce = v
	}
	if v, ok := m["pw_salt"].(string); ok {
		kp.PwSalt = v
	}
	switch v := m["pw_cost"].(type) {
	case int:
		kp.PwCost = v
	case float64:
		kp.PwCost = int(v)
	}
	return kp
}

// Equal reports whether two KeyParams describe the same derivation input
// (spec.md §4.5 step 6: "server params still differ from client params").
func (kp KeyParams) Equal(other KeyParams) bool {
	return kp.Version == other.Version && kp.Identifier == other.Identifier &&
		kp.PwNonce == other.PwNonce && kp.PwSalt == other.PwSalt && kp.PwCost == other.PwCost
}

// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the four coexisting cryptographic protocol
// versions of spec.md §4.1 (key derivation, content encryption, and
// authenticated framing) and the Service that dispatches between them by
// the 3-character version prefix carried in every ciphertext string.
package protocol

import (
	"errors"
	"strings"

	"github.com/halvard/notesync/internal/keys"
)

// Version is the 3-character protocol version tag that prefixes every
// ciphertext string (spec.md §3, §4.1).
type Version string

const (
	Version001 Version = "001"
	Version002 Version = "002"
	Version003 Version = "003"
	Version004 Version = "004"

	// Latest is the only version this library encrypts with.
	Latest = Version004
)

// ErrUnknownVersion is returned when a ciphertext string's prefix does not
// match any known protocol version.
var ErrUnknownVersion = errors.New("protocol: unknown version tag")

// ErrEncryptionUnsupported is returned by legacy (v001-v003) operators'
// EncryptString: spec.md §4.1 states the library "decrypts all four and
// encrypts only with its latest (004)".
var ErrEncryptionUnsupported = errors.New("protocol: encryption not supported for this legacy version")

// costMinimums mirrors spec.md §4.1 "supportsPasswordDerivationCost true
// iff cost >= version-specific minimum". Versions with a modern KDF
// (Argon2id/PBKDF2-SHA512) don't use the legacy "cost" knob at all, so
// they report 0 (any cost is accepted / the field is ignored).
var costMinimums = map[Version]int{
	Version001: 3000,
	Version002: 5000,
	Version003: 0,
	Version004: 0,
}

// ParseVersion extracts the 3-character version tag from a ciphertext
// string, or from the "000" unencrypted-content prefix.
func ParseVersion(ciphertext string) (Version, error) {
	if len(ciphertext) < 3 {
		return "", ErrUnknownVersion
	}
	v := Version(ciphertext[:3])
	switch v {
	case Version001, Version002, Version003, Version004, "000":
		return v, nil
	default:
		return "", ErrUnknownVersion
	}
}

// Compare orders two version tags using decimal string comparison after
// zero-padding (spec.md §4.1 "Version ordering"). Returns <0 if a is older
// than b, 0 if equal, >0 if a is newer.
func Compare(a, b Version) int {
	return strings.Compare(string(a), string(b))
}

// SupportsPasswordDerivationCost reports whether cost meets the minimum
// required for version v.
func SupportsPasswordDerivationCost(v Version, cost int) bool {
	min, ok := costMinimums[v]
	if !ok {
		return false
	}
	return cost >= min
}

// Operator implements key derivation and content encryption/decryption for
// exactly one protocol version.
type Operator interface {
	Version() Version

	// DeriveRootKey re-derives a RootKey from password and params.
	DeriveRootKey(password string, params keys.KeyParams) (*keys.RootKey, error)

	// EncryptString encrypts plaintext under key, returning the full
	// versioned, framed ciphertext string. aad carries the framing's
	// context fields (uuid, items_key_id, version — spec.md §6); legacy
	// versions interpret aad differently (see v003.go).
	EncryptString(plaintext string, key []byte, aad AAD) (string, error)

	// DecryptString reverses EncryptString. Returns the error sentinel
	// ErrAuthFailed if the authentication tag does not verify.
	DecryptString(ciphertext string, key []byte, aad AAD) (string, error)
}

// AAD carries the additional authenticated data fields used to build the
// AAD string for a given protocol version (spec.md §6: the v004 AAD is
// "{uuid}:{items_key_id}:{version}"; v003 folds uuid into its own framing
// instead of an AEAD AAD).
type AAD struct {
	UUID       string
	ItemsKeyID string
	Version    Version
}

// String renders the v004 AAD format.
func (a AAD) String() string {
	return a.UUID + ":" + a.ItemsKeyID + ":" + string(a.Version)
}

// ErrAuthFailed is returned by DecryptString when the ciphertext's
// authentication tag does not verify (spec.md §4.1 decryption pipeline
// step 5: "On auth failure -> errorDecrypting=true").
var ErrAuthFailed = errors.New("protocol: authentication failed")

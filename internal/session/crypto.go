// SPDX-License-Identifier: Apache-2.0

package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// randomNonce generates a fresh pw_nonce for a new KeyParams (spec.md §3:
// "pw_nonce... generated once at registration and never reused").
func randomNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("session: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// encodeServerPassword renders the server password bytes produced by key
// derivation into the wire form sent to the server (spec.md §3: the
// server password never carries raw key material over the network, only
// its base64 form).
func encodeServerPassword(serverPassword []byte) string {
	return base64.StdEncoding.EncodeToString(serverPassword)
}

// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapRootKeyRoundTrip(t *testing.T) {
	rk := &RootKey{
		Version:        Version004,
		MasterKey:      []byte("0123456789abcdef0123456789abcdef"),
		ServerPassword: []byte("fedcba9876543210fedcba9876543210"),
		Params:         KeyParams{Version: Version004, Identifier: "a@b.com", PwNonce: "nonce"},
	}

	wrapped, err := WrapWithPasscode(rk, "my-passcode")
	require.NoError(t, err)

	unwrapped, err := UnwrapWithPasscode(wrapped, "my-passcode")
	require.NoError(t, err)
	assert.Equal(t, rk.MasterKey, unwrapped.MasterKey)
	assert.Equal(t, rk.Params.Identifier, unwrapped.Params.Identifier)
}

func TestUnwrapWithWrongPasscodeFails(t *testing.T) {
	rk := &RootKey{Version: Version004, MasterKey: []byte("key-material")}
	wrapped, err := WrapWithPasscode(rk, "correct")
	require.NoError(t, err)

	_, err = UnwrapWithPasscode(wrapped, "wrong")
	assert.Error(t, err)
}

func TestRingAtMostOneDefault(t *testing.T) {
	r := NewRing()
	r.Add(&ItemsKey{UUID: "a", IsDefault: true, CreatedAt: time.Now()})
	r.Add(&ItemsKey{UUID: "b", IsDefault: true, CreatedAt: time.Now()})

	defaults := 0
	for _, k := range r.All() {
		if k.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	assert.Equal(t, "b", r.Default().UUID)
}

func TestRingSetDefaultSwitchesExclusively(t *testing.T) {
	r := NewRing()
	r.Add(&ItemsKey{UUID: "a", IsDefault: true})
	r.Add(&ItemsKey{UUID: "b"})

	ok := r.SetDefault("b")
	require.True(t, ok)

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.False(t, a.IsDefault)
	assert.True(t, b.IsDefault)
}

func TestRingNewest(t *testing.T) {
	r := NewRing()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	r.Add(&ItemsKey{UUID: "old", CreatedAt: older})
	r.Add(&ItemsKey{UUID: "new", CreatedAt: newer})

	assert.Equal(t, "new", r.Newest().UUID)
}

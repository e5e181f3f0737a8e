// SPDX-License-Identifier: Apache-2.0

package keys

import "encoding/json"

// rootKeyWire is the JSON shape used internally to serialize a RootKey's
// sensitive material before AEAD-wrapping it with a passcode-derived key.
// It never touches disk or the network unencrypted.
type rootKeyWire struct {
	Version                Version   `json:"version"`
	MasterKey              []byte    `json:"master_key"`
	ServerPassword         []byte    `json:"server_password"`
	DataAuthenticationKey  []byte    `json:"data_authentication_key,omitempty"`
	Params                 KeyParams `json:"params"`
}

func encodeRootKey(rk *RootKey) []byte {
	w := rootKeyWire{
		Version:               rk.Version,
		MasterKey:             rk.MasterKey,
		ServerPassword:        rk.ServerPassword,
		DataAuthenticationKey: rk.DataAuthenticationKey,
		Params:                rk.Params,
	}
	// encoding/json cannot fail on this concrete, cycle-free struct.
	b, _ := json.Marshal(w)
	return b
}

func decodeRootKey(b []byte) (*RootKey, error) {
	var w rootKeyWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	return &RootKey{
		Version:               w.Version,
		MasterKey:             w.MasterKey,
		ServerPassword:        w.ServerPassword,
		DataAuthenticationKey: w.DataAuthenticationKey,
		Params:                w.Params,
	}, nil
}

// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/logger"
	pl "github.com/halvard/notesync/internal/payload"
)

// Service dispatches encryption/decryption by version (spec.md §2, §4.1)
// and manages items-key selection for v004 payloads. It holds no payload
// state of its own — callers supply the items-key ring and root key.
type Service struct {
	operators map[Version]Operator
	log       *logger.Logger
}

// NewService constructs a Service with the standard v001–v004 operators
// registered.
func NewService(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{operators: make(map[Version]Operator), log: log}
	for _, op := range []Operator{NewV001(), NewV002(), NewV003(), NewV004()} {
		s.operators[op.Version()] = op
	}
	return s
}

// VersionForUser reports the protocol version of an already-derived root
// key, and whether it is outdated relative to Latest — the "outdated
// protocol" warning spec.md §4.1 requires when signing in against v001/v002.
func (s *Service) VersionForUser(rk *keys.RootKey) (version Version, outdated bool) {
	v := Version(rk.Version)
	return v, Compare(v, Latest) < 0
}

// DeriveRootKey dispatches key derivation to the operator named by
// params.Version.
func (s *Service) DeriveRootKey(password string, params keys.KeyParams) (*keys.RootKey, error) {
	op, ok := s.operators[Version(params.Version)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, params.Version)
	}
	return op.DeriveRootKey(password, params)
}

// DecryptPayload implements the decryption pipeline of spec.md §4.1.
//
// rootKey is required to decrypt SN|ItemsKey payloads (which are wrapped
// directly by the master key) and legacy (v001–v003) payloads. ring is
// consulted for every other v004 payload's items_key_id.
func (s *Service) DecryptPayload(p *pl.Payload, rootKey *keys.RootKey, ring *keys.Ring) *pl.Payload {
	if p.DecryptedOK {
		// Already-decrypted payloads pass through unchanged (spec.md §8
		// scenario 2): return the same reference, not a rebuilt copy.
		return p
	}
	if p.CipherText == "" {
		return p
	}

	version, err := ParseVersion(p.CipherText)
	if err != nil {
		s.log.Warn().Str("uuid", p.UUID).Msg("unparseable ciphertext version")
		return p.WithErrorDecrypting()
	}

	if version == "000" {
		content, err := DecodeUnencrypted(p.CipherText)
		if err != nil {
			return p.WithErrorDecrypting()
		}
		return p.WithContent(pl.Content(content))
	}

	if version == Version004 {
		return s.decryptV004(p, rootKey, ring)
	}

	return s.decryptLegacy(p, version, rootKey)
}

func (s *Service) decryptV004(p *pl.Payload, rootKey *keys.RootKey, ring *keys.Ring) *pl.Payload {
	op := s.operators[Version004]

	if p.ContentType == pl.ContentTypeItemsKey {
		if rootKey == nil {
			return p.WithWaitingForKey()
		}
		plain, err := op.DecryptString(p.CipherText, rootKey.MasterKey, AAD{UUID: p.UUID, Version: Version004})
		if err != nil {
			s.log.Warn().Str("uuid", p.UUID).Msg("items key decryption failed")
			return p.WithErrorDecrypting()
		}
		return decodeJSONContent(p, plain)
	}

	if ring == nil {
		return p.WithWaitingForKey()
	}
	itemsKey, found := ring.Get(p.ItemsKeyID)
	if !found {
		return p.WithWaitingForKey()
	}

	aad := AAD{UUID: p.UUID, ItemsKeyID: p.ItemsKeyID, Version: Version004}

	itemKeyB64, err := op.DecryptString(p.EncItemKey, itemsKey.KeyMaterial, aad)
	if err != nil {
		s.log.Warn().Str("uuid", p.UUID).Msg("per-item key decryption failed")
		return p.WithErrorDecrypting()
	}
	itemKey, err := base64.StdEncoding.DecodeString(itemKeyB64)
	if err != nil {
		return p.WithErrorDecrypting()
	}

	plain, err := op.DecryptString(p.CipherText, itemKey, aad)
	if err != nil {
		s.log.Warn().Str("uuid", p.UUID).Msg("content decryption failed")
		return p.WithErrorDecrypting()
	}

	return decodeJSONContent(p, plain)
}

func (s *Service) decryptLegacy(p *pl.Payload, version Version, rootKey *keys.RootKey) *pl.Payload {
	op, ok := s.operators[version]
	if !ok || rootKey == nil {
		return p.WithWaitingForKey()
	}

	key := append(append([]byte(nil), rootKey.MasterKey...), rootKey.DataAuthenticationKey...)
	plain, err := op.DecryptString(p.CipherText, key, AAD{UUID: p.UUID, Version: version})
	if err != nil {
		s.log.Warn().Str("uuid", p.UUID).Str("version", string(version)).Msg("legacy decryption failed")
		return p.WithErrorDecrypting()
	}
	return decodeJSONContent(p, plain)
}

func decodeJSONContent(p *pl.Payload, plain string) *pl.Payload {
	var content map[string]any
	if err := json.Unmarshal([]byte(plain), &content); err != nil {
		return p.WithErrorDecrypting()
	}
	return p.WithContent(pl.Content(content))
}

// EncryptPayload implements spec.md §4.1 v004 encryption: a fresh per-item
// key wraps the content, itself wrapped by the current default items key.
// SN|ItemsKey payloads are wrapped directly by rootKey's master key, with
// no items-key indirection (mirroring decryptV004's special case).
func (s *Service) EncryptPayload(p *pl.Payload, rootKey *keys.RootKey, defaultItemsKey *keys.ItemsKey) (*pl.Payload, error) {
	if !p.DecryptedOK || p.Content == nil {
		return nil, fmt.Errorf("encrypt payload %s: no decrypted content to encrypt", p.UUID)
	}
	op := s.operators[Version004]

	body, err := json.Marshal(map[string]any(p.Content))
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	if p.ContentType == pl.ContentTypeItemsKey {
		if rootKey == nil {
			return nil, fmt.Errorf("encrypt items key payload %s: no root key", p.UUID)
		}
		ct, err := op.EncryptString(string(body), rootKey.MasterKey, AAD{UUID: p.UUID, Version: Version004})
		if err != nil {
			return nil, fmt.Errorf("encrypt items key content: %w", err)
		}
		out := p.WithCipherText(ct)
		return out, nil
	}

	if defaultItemsKey == nil {
		return nil, fmt.Errorf("encrypt payload %s: no default items key available", p.UUID)
	}

	itemKey, err := GenerateItemKey()
	if err != nil {
		return nil, err
	}

	aad := AAD{UUID: p.UUID, ItemsKeyID: defaultItemsKey.UUID, Version: Version004}

	ct, err := op.EncryptString(string(body), itemKey, aad)
	if err != nil {
		return nil, fmt.Errorf("encrypt content: %w", err)
	}

	encItemKey, err := op.EncryptString(base64.StdEncoding.EncodeToString(itemKey), defaultItemsKey.KeyMaterial, aad)
	if err != nil {
		return nil, fmt.Errorf("encrypt item key: %w", err)
	}

	return p.WithEncryptedItem(ct, encItemKey, defaultItemsKey.UUID), nil
}

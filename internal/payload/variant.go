// SPDX-License-Identifier: Apache-2.0

package payload

// Variant names the differential projections of a Payload (spec.md §3:
// "Payload variants differ only by which subset of fields they carry").
// Projection is pure: a Payload is never mutated, only copied with some
// fields zeroed.
type Variant string

const (
	// VariantMax carries every field. Used internally (the master
	// collection in internal/manager always holds max-variant payloads).
	VariantMax Variant = "max"

	// VariantRemoteRetrieved mirrors a fully-populated server item returned
	// from a regular sync request.
	VariantRemoteRetrieved Variant = "remote-retrieved"

	// VariantRemoteSaved carries only metadata (no content) — the server's
	// acknowledgement that a previously-uploaded payload was saved.
	VariantRemoteSaved Variant = "remote-saved"

	// VariantFileImport mirrors a payload read from a plaintext/encrypted
	// export file, prior to uuid-collision checking.
	VariantFileImport Variant = "file-import"

	// VariantDeletionPayload represents a tombstone: content, ciphertext,
	// key references and auth fields are dropped, while uuid, content_type,
	// deleted, dirty, the timestamps and the other bookkeeping fields are
	// kept.
	VariantDeletionPayload Variant = "deletion"
)

// Project returns a copy of p restricted to the fields Variant v carries.
// Fields outside the variant's subset are zeroed on the returned value;
// the receiver is never modified.
func (p *Payload) Project(v Variant) *Payload {
	np := p.params()
	switch v {
	case VariantRemoteSaved:
		np.Content = nil
		np.CipherText = ""
		np.DecryptedOK = false
	case VariantDeletionPayload:
		np.Content = nil
		np.CipherText = ""
		np.DecryptedOK = false
		np.EncItemKey = ""
		np.ItemsKeyID = ""
		np.AuthHash = ""
		np.AuthParams = nil
	case VariantRemoteRetrieved, VariantFileImport, VariantMax:
		// carries everything; no fields dropped.
	}
	return New(np)
}

// HasContent reports whether the variant (or the as-constructed payload)
// carries a content body at all. RemoteSaved and deletion payloads never
// do, which is why the sync engine merges them with the existing master
// copy before persisting (spec.md §4.3 "Response handling").
func (p *Payload) HasContent() bool {
	return p.DecryptedOK && p.Content != nil
}

// MergeContentFrom returns a copy of p with Content/CipherText/DecryptedOK
// taken from other, keeping p's own metadata (timestamps, dirty flags,
// sync bookkeeping) intact. Used to reconstitute a content-less
// RemoteSaved/deletion payload against the existing master copy.
func (p *Payload) MergeContentFrom(other *Payload) *Payload {
	np := p.params()
	np.Content = other.Content
	np.CipherText = other.CipherText
	np.DecryptedOK = other.DecryptedOK
	np.EncItemKey = other.EncItemKey
	np.ItemsKeyID = other.ItemsKeyID
	return New(np)
}

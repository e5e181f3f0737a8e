// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"time"

	"github.com/halvard/notesync/internal/payload"
)

const wireTimeLayout = "2006-01-02T15:04:05.000000Z"

func toWireItem(p *payload.Payload) WireItem {
	wi := WireItem{
		UUID:        p.UUID,
		ContentType: string(p.ContentType),
		Content:     p.CipherText,
		EncItemKey:  p.EncItemKey,
		ItemsKeyID:  p.ItemsKeyID,
		Deleted:     p.Deleted,
		AuthHash:    p.AuthHash,
	}
	if !p.CreatedAt.IsZero() {
		wi.CreatedAt = p.CreatedAt.UTC().Format(wireTimeLayout)
	}
	if !p.UpdatedAt.IsZero() {
		wi.UpdatedAt = p.UpdatedAt.UTC().Format(wireTimeLayout)
	}
	return wi
}

func fromWireItem(wi WireItem) *payload.Payload {
	return payload.New(payload.Params{
		UUID:        wi.UUID,
		ContentType: payload.ContentType(wi.ContentType),
		CipherText:  wi.Content,
		EncItemKey:  wi.EncItemKey,
		ItemsKeyID:  wi.ItemsKeyID,
		Deleted:     wi.Deleted,
		AuthHash:    wi.AuthHash,
		CreatedAt:   parseWireTime(wi.CreatedAt),
		UpdatedAt:   parseWireTime(wi.UpdatedAt),
	})
}

func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(wireTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

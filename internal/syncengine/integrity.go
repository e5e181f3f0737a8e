// SPDX-License-Identifier: Apache-2.0

package syncengine

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/halvard/notesync/internal/payload"
)

// computeIntegrityHash implements spec.md §4.3/§8: SHA-256 over the
// comma-join of updated_at microsecond strings of non-deleted items,
// sorted by updated_at descending.
func computeIntegrityHash(nonDeleted []*payload.Payload) string {
	sorted := make([]*payload.Payload, len(nonDeleted))
	copy(sorted, nonDeleted)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = strconv.FormatInt(p.UpdatedAt.UnixMicro(), 10)
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

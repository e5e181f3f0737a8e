// SPDX-License-Identifier: Apache-2.0

package item

import (
	"reflect"

	"github.com/halvard/notesync/internal/payload"
)

// ConflictStrategy is the outcome of SNItem.strategyWhenConflictingWithItem
// (spec.md §4.4): how a delta reconciles one uuid's local (left) payload
// against an incoming (right) payload of the same uuid.
type ConflictStrategy int

const (
	// KeepLeft ignores the incoming payload outright: the local copy
	// stands. Used for singleton conflicts (the singleton enforcer, not
	// the delta, is responsible for convergence) and when incoming is
	// errorDecrypting while local is healthy — an undecryptable arrival
	// must never become the master copy.
	KeepLeft ConflictStrategy = iota

	// KeepRight accepts the incoming payload outright, no duplicate.
	// Used when either side is deleted, or the two contents are equal
	// under content-equality (see Equal).
	KeepRight

	// KeepLeftDuplicateRight keeps the local payload as master and
	// duplicates the incoming payload under a fresh uuid with
	// conflict_of set to the local uuid. Used exclusively by the
	// FileImport delta: imported data must never overwrite what's
	// already present locally.
	KeepLeftDuplicateRight

	// KeepRightDuplicateLeft accepts the incoming payload as master and
	// duplicates the local payload under a fresh uuid with conflict_of
	// set to the (now-superseded) local uuid. This is the general
	// sync-conflict resolution (spec.md §8 scenario 6: the server's
	// content wins the original uuid, the local edit survives as a
	// conflict duplicate) and also applies when local is errorDecrypting
	// and incoming is healthy — the healthy copy replaces it, with the
	// errored copy preserved as a duplicate rather than silently lost.
	KeepRightDuplicateLeft

	// KeepLeftMergeRefs keeps the local content but unions the two
	// sides' reference arrays. Used for content types whose Descriptor
	// sets MergeRefs (e.g. tag-like items whose references accumulate
	// from multiple clients rather than replace wholesale).
	KeepLeftMergeRefs
)

// Decide implements spec.md §4.4's strategy selection for a single uuid's
// local (left) and incoming (right) payloads, outside of FileImport (which
// always forces KeepLeftDuplicateRight — see internal/delta).
func Decide(left, right Item) ConflictStrategy {
	d := DescriptorFor(left.ContentType())

	if left.Deleted() || right.Deleted() {
		return KeepRight
	}

	if right.ErrorDecrypting() && !left.ErrorDecrypting() {
		return KeepLeft
	}
	if left.ErrorDecrypting() && !right.ErrorDecrypting() {
		return KeepRightDuplicateLeft
	}

	if Equal(left.Content(), right.Content()) {
		return KeepRight
	}

	if d.IsSingleton {
		return KeepLeft
	}

	if d.MergeRefs {
		return KeepLeftMergeRefs
	}

	return KeepRightDuplicateLeft
}

// contentKeysToIgnoreWhenCheckingEquality (spec.md §4.4): fields that are
// local sync bookkeeping artifacts, never part of the user's actual data.
var contentKeysToIgnoreWhenCheckingEquality = map[string]bool{
	"conflict_of": true,
}

// appDataContentKeysToIgnoreWhenCheckingEquality: keys inside
// content.appData considered bookkeeping rather than user data.
var appDataContentKeysToIgnoreWhenCheckingEquality = map[string]bool{
	"client_updated_at": true,
}

// Equal reports whether two contents are equal under spec.md §4.4's
// equality rule: ignore contentKeysToIgnoreWhenCheckingEquality at the top
// level and appDataContentKeysToIgnoreWhenCheckingEquality inside appData.
func Equal(a, b payload.Content) bool {
	fa := filteredForEquality(a)
	fb := filteredForEquality(b)
	return reflect.DeepEqual(fa, fb)
}

func filteredForEquality(c payload.Content) map[string]any {
	out := map[string]any{}
	for k, v := range c {
		if contentKeysToIgnoreWhenCheckingEquality[k] {
			continue
		}
		if k == "appData" {
			if appData, ok := v.(map[string]any); ok {
				filtered := map[string]any{}
				for ak, av := range appData {
					if appDataContentKeysToIgnoreWhenCheckingEquality[ak] {
						continue
					}
					filtered[ak] = av
				}
				out[k] = filtered
				continue
			}
		}
		out[k] = v
	}
	return out
}

// SPDX-License-Identifier: Apache-2.0

// Package recovery implements spec.md §4.5's Key Recovery Service: when an
// items-key payload arrives undecryptable, it is persisted to isolated
// storage, queued, and retried against passwords the host prompts for,
// until either a newer root key is adopted or the queue drains clean.
package recovery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/halvard/notesync/internal/events"
	"github.com/halvard/notesync/internal/item"
	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/logger"
	"github.com/halvard/notesync/internal/payload"
	"github.com/halvard/notesync/internal/protocol"
	"github.com/halvard/notesync/internal/session"
	"github.com/halvard/notesync/internal/storage"
)

// ErrAlreadyProcessing guards re-entrant Process calls (spec.md §5: "the
// decryption queue is a mutable FIFO guarded by isProcessingQueue").
var ErrAlreadyProcessing = errors.New("recovery: queue already being processed")

// ErrPromptCancelled is returned when a ChallengePrompter call is
// cancelled mid-flow (spec.md §5: "a challenge prompt returning null
// cancels the operation that requested it").
var ErrPromptCancelled = errors.New("recovery: password prompt cancelled")

// DecryptionQueueItem is one undecryptable items-key payload awaiting a
// successful password (spec.md §4.5 step 2).
type DecryptionQueueItem struct {
	Key       *payload.Payload
	KeyParams keys.KeyParams
}

// SyncTrigger is the narrow slice of syncengine.Engine the recovery
// service needs: whether the last round left the client out of sync, and
// a way to run an integrity-checked recovery sync (spec.md §4.5 step 6).
type SyncTrigger interface {
	OutOfSync() bool
	ResolveOutOfSync(ctx context.Context) error
}

// Service implements spec.md §4.5. It holds no session state of its own
// beyond the pending queue; the items-key ring is fixed at New, and the
// caller supplies the current root key on every Process call, mirroring
// how the session and sync engine are wired elsewhere in this module.
type Service struct {
	store    *storage.Service
	remote   session.RemoteClient
	proto    *protocol.Service
	ring     *keys.Ring
	prompter session.ChallengePrompter
	sync     SyncTrigger
	events   *events.Dispatcher
	log      *logger.Logger

	mu         sync.Mutex
	queue      []DecryptionQueueItem
	processing bool
}

// New constructs a Service. sync may be nil if the caller does not wish
// step 6's out-of-sync recovery to run automatically.
func New(
	store *storage.Service,
	remote session.RemoteClient,
	proto *protocol.Service,
	ring *keys.Ring,
	prompter session.ChallengePrompter,
	sync SyncTrigger,
	dispatcher *events.Dispatcher,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if dispatcher == nil {
		dispatcher = events.New()
	}
	return &Service{store: store, remote: remote, proto: proto, ring: ring, prompter: prompter, sync: sync, events: dispatcher, log: log}
}

type persistedUndecryptableKey struct {
	UUID        string         `json:"uuid"`
	ContentType string         `json:"content_type"`
	CipherText  string         `json:"cipher_text"`
	AuthParams  map[string]any `json:"auth_params,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
}

// HandleUndecryptableKey implements spec.md §4.5 steps 1-2 for an
// items-key payload that arrived with errorDecrypting=true from a
// non-local source; the caller hands such payloads in (the item manager
// does not call it). It persists the raw record into isolated storage and
// enqueues it for the next Process call.
func (s *Service) HandleUndecryptableKey(ctx context.Context, p *payload.Payload) error {
	if p.ContentType != payload.ContentTypeItemsKey || !p.ErrorDecrypting {
		return fmt.Errorf("recovery: %s is not an undecryptable items key", p.UUID)
	}

	rec := persistedUndecryptableKey{UUID: p.UUID, ContentType: string(p.ContentType), CipherText: p.CipherText, AuthParams: p.AuthParams}
	if !p.CreatedAt.IsZero() {
		rec.CreatedAt = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("recovery: encode undecryptable record: %w", err)
	}
	if err := s.store.SaveUndecryptableItem(ctx, p.UUID, string(raw)); err != nil {
		return fmt.Errorf("recovery: persist undecryptable key: %w", err)
	}

	s.mu.Lock()
	s.queue = append(s.queue, DecryptionQueueItem{Key: p, KeyParams: keys.ParamsFromAuthParams(p.AuthParams)})
	s.mu.Unlock()
	return nil
}

// QueueLen reports how many items are pending.
func (s *Service) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ProcessInput groups what the caller supplies for one drain attempt.
type ProcessInput struct {
	Email               string
	HasLocalCredentials bool
	// CurrentRootKey is the session's active root key, required when
	// HasLocalCredentials is true.
	CurrentRootKey *keys.RootKey
	// Passcode, if non-empty, re-wraps a recovered root key for local
	// storage (spec.md §4.5 step 5: "wrapping with current passcode if
	// present"). Left empty when no passcode is set on this device.
	Passcode string
}

// ProcessResult reports what one Process call accomplished.
type ProcessResult struct {
	Recovered        []*payload.Payload
	NewRootKey       *keys.RootKey
	CorrectiveSignIn *session.Session
	StillPending     int
}

// Process implements spec.md §4.5 steps 3-6. It is re-entrancy guarded:
// a second concurrent call returns ErrAlreadyProcessing.
func (s *Service) Process(ctx context.Context, in ProcessInput) (*ProcessResult, error) {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return nil, ErrAlreadyProcessing
	}
	s.processing = true
	queue := append([]DecryptionQueueItem(nil), s.queue...)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	result := &ProcessResult{}
	if len(queue) == 0 {
		return result, nil
	}

	serverParams, err := s.remote.RequestKeyParams(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("recovery: fetch server key params: %w", err)
	}

	rootKey := in.CurrentRootKey
	cache := map[string]*keys.RootKey{}
	if rootKey != nil {
		cache[paramsCacheKey(rootKey.Params)] = rootKey
	}

	if !in.HasLocalCredentials {
		// Step 4: no local credentials — sign in directly using the
		// first queued key's embedded params.
		password, ok := s.prompter.PromptPassword(ctx, "sign in to recover your data")
		if !ok {
			return nil, ErrPromptCancelled
		}
		firstParams := queue[0].KeyParams
		derived, err := s.proto.DeriveRootKey(password, firstParams)
		if err != nil {
			return nil, fmt.Errorf("recovery: derive root key for sign-in: %w", err)
		}
		signInResp, err := s.remote.SignIn(ctx, session.SignInRequest{Email: in.Email, ServerPassword: encodeServerPassword(derived.ServerPassword)})
		if err != nil {
			return nil, fmt.Errorf("recovery: sign in with recovered params: %w", err)
		}
		rootKey = derived
		result.NewRootKey = derived
		result.CorrectiveSignIn = &session.Session{UserUUID: signInResp.UserUUID, Email: in.Email, Token: signInResp.Token, ExpiresAt: signInResp.ExpiresAt}
		cache[paramsCacheKey(firstParams)] = derived
		s.events.EmitSimple(events.SignedIn)
	}

	var stillPending []DecryptionQueueItem
	for _, qi := range queue {
		candidate, cached := cache[paramsCacheKey(qi.KeyParams)]
		if !cached {
			password, ok := s.prompter.PromptPassword(ctx, fmt.Sprintf("enter the password that protected key %s", qi.Key.UUID))
			if !ok {
				stillPending = append(stillPending, qi)
				continue
			}
			derived, err := s.proto.DeriveRootKey(password, qi.KeyParams)
			if err != nil {
				s.log.Warn().Str("uuid", qi.Key.UUID).Msg("recovery: key derivation failed, re-queued")
				stillPending = append(stillPending, qi)
				continue
			}
			candidate = derived
			cache[paramsCacheKey(qi.KeyParams)] = candidate
		}

		decrypted := s.proto.DecryptPayload(qi.Key, candidate, s.ring)
		if !decrypted.DecryptedOK {
			stillPending = append(stillPending, qi)
			continue
		}

		if err := s.store.RemoveUndecryptableItem(ctx, qi.Key.UUID); err != nil {
			s.log.Warn().Str("uuid", qi.Key.UUID).Msg("recovery: failed clearing isolated storage record")
		}
		result.Recovered = append(result.Recovered, decrypted)

		if ik, ok := itemsKeyFromDecrypted(decrypted); ok {
			s.ring.Add(ik)

			matchesServer := qi.KeyParams.Equal(serverParams.KeyParams)
			newest := s.ring.Newest()
			isNewest := newest != nil && newest.UUID == ik.UUID
			if matchesServer && isNewest && (rootKey == nil || !rootKey.Params.Equal(qi.KeyParams)) {
				rootKey = candidate
				result.NewRootKey = candidate
				s.rewrapIfPasscodeSet(ctx, candidate, in.Passcode)
			}
		}
	}

	s.mu.Lock()
	s.queue = stillPending
	s.mu.Unlock()
	result.StillPending = len(stillPending)

	s.events.Emit(events.Event{Type: events.KeyStatusChanged, Payload: map[string]any{"recovered": len(result.Recovered), "pending": len(stillPending)}})

	if len(stillPending) == 0 {
		if err := s.drainCorrective(ctx, in, rootKey, serverParams.KeyParams, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// drainCorrective implements spec.md §4.5 step 6: once the queue is
// empty, force a corrective sign-in if the active root key's params still
// disagree with the server's, then trigger an integrity sync if the
// client is out of sync.
func (s *Service) drainCorrective(ctx context.Context, in ProcessInput, rootKey *keys.RootKey, serverParams keys.KeyParams, result *ProcessResult) error {
	if rootKey == nil || !rootKey.Params.Equal(serverParams) {
		password, ok := s.prompter.PromptPassword(ctx, "re-authenticate to finish recovery")
		if !ok {
			return ErrPromptCancelled
		}
		derived, err := s.proto.DeriveRootKey(password, serverParams)
		if err != nil {
			return fmt.Errorf("recovery: derive corrective root key: %w", err)
		}
		resp, err := s.remote.SignIn(ctx, session.SignInRequest{Email: in.Email, ServerPassword: encodeServerPassword(derived.ServerPassword)})
		if err != nil {
			return fmt.Errorf("recovery: corrective sign-in: %w", err)
		}
		result.NewRootKey = derived
		result.CorrectiveSignIn = &session.Session{UserUUID: resp.UserUUID, Email: in.Email, Token: resp.Token, ExpiresAt: resp.ExpiresAt}
		s.events.EmitSimple(events.SignedIn)
	}

	if s.sync != nil && s.sync.OutOfSync() {
		if err := s.sync.ResolveOutOfSync(ctx); err != nil {
			return fmt.Errorf("recovery: resolve out-of-sync after recovery: %w", err)
		}
	}
	return nil
}

func (s *Service) rewrapIfPasscodeSet(ctx context.Context, rk *keys.RootKey, passcode string) {
	if passcode == "" {
		return
	}
	if _, found, err := s.store.GetRootKeyWrapperParams(ctx); err != nil || !found {
		return
	}
	wrapped, err := keys.WrapWithPasscode(rk, passcode)
	if err != nil {
		s.log.Warn().Msg("recovery: failed to re-wrap recovered root key with passcode")
		return
	}
	blob, err := json.Marshal(wrapped)
	if err != nil {
		s.log.Warn().Msg("recovery: failed to encode wrapped root key")
		return
	}
	if err := s.store.SetRootKeyWrapperParams(ctx, string(blob)); err != nil {
		s.log.Warn().Msg("recovery: failed to persist re-wrapped root key")
	}
}

func itemsKeyFromDecrypted(p *payload.Payload) (*keys.ItemsKey, bool) {
	if !p.DecryptedOK {
		return nil, false
	}
	ik := item.AsItemsKeyItem(item.Wrap(p))
	matB64 := ik.KeyMaterialBase64()
	if matB64 == "" {
		return nil, false
	}
	material, err := base64.StdEncoding.DecodeString(matB64)
	if err != nil {
		return nil, false
	}
	return &keys.ItemsKey{UUID: p.UUID, KeyMaterial: material, Version: keys.Version004, IsDefault: ik.IsDefault(), CreatedAt: p.CreatedAt}, true
}

func paramsCacheKey(kp keys.KeyParams) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", kp.Version, kp.Identifier, kp.PwNonce, kp.PwSalt, kp.PwCost)
}

func encodeServerPassword(serverPassword []byte) string {
	return base64.StdEncoding.EncodeToString(serverPassword)
}

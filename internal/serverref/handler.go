// SPDX-License-Identifier: Apache-2.0

package serverref

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/halvard/notesync/internal/logger"
)

type ctxKey int

const userUUIDCtxKey ctxKey = iota

// Handler implements the sync server's HTTP surface against a Store,
// grounded on go-pass-keeper's handler.Handler (services + logger, one
// method per route) but serving the wire shapes of spec.md §6 instead of
// go-pass-keeper's own DTOs.
type Handler struct {
	store  Store
	tokens *tokenIssuer
	log    *logger.Logger
}

// Config tunes the reference server's token issuance. Grounded on
// go-pass-keeper's config.App (PasswordHashKey/TokenSignKey/TokenIssuer/
// TokenDuration).
type Config struct {
	TokenSignKey  string
	TokenIssuer   string
	TokenDuration time.Duration
}

func NewHandler(store Store, cfg Config, log *logger.Logger) *Handler {
	if cfg.TokenIssuer == "" {
		cfg.TokenIssuer = "notesync-serverref"
	}
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 24 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		store:  store,
		tokens: newTokenIssuer(cfg.TokenSignKey, cfg.TokenIssuer, cfg.TokenDuration),
		log:    log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) keyParams(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	u, err := h.store.FindUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "no account for email", http.StatusNotFound)
			return
		}
		h.log.Err(err).Msg("key params lookup failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, KeyParamsResponse{KeyParams: u.KeyParams})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.ServerPassword == "" {
		http.Error(w, "email and server_password are required", http.StatusBadRequest)
		return
	}

	u := userRecord{UUID: uuid.NewString(), Email: req.Email, ServerPassword: req.ServerPassword, KeyParams: req.KeyParams}
	if err := h.store.CreateUser(r.Context(), u); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.log.Err(err).Msg("user creation failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, RegisterResponse{UserUUID: u.UUID})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	u, err := h.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if u.ServerPassword != req.ServerPassword {
		h.log.Warn().Str("email", req.Email).Msg("server password mismatch")
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.tokens.issue(u.UUID)
	if err != nil {
		h.log.Err(err).Msg("token issue failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, SignInResponse{
		UserUUID:  u.UUID,
		Token:     token,
		ExpiresAt: expiresAt,
		KeyParams: u.KeyParams,
	})
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	userUUID, _ := r.Context().Value(userUUIDCtxKey).(string)

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	u, err := h.store.FindUserByEmail(r.Context(), req.Email)
	if err != nil || u.UUID != userUUID {
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if u.ServerPassword != req.CurrentServerPassword {
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	if err := h.store.UpdateUserPassword(r.Context(), userUUID, req.NewServerPassword, req.NewKeyParams); err != nil {
		h.log.Err(err).Msg("password update failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	token, expiresAt, err := h.tokens.issue(userUUID)
	if err != nil {
		h.log.Err(err).Msg("token issue failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ChangePasswordResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	userUUID, _ := r.Context().Value(userUUIDCtxKey).(string)

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	var sinceSeq int64
	if req.SyncToken != "" {
		sinceSeq = decodeSyncToken(req.SyncToken)
	}

	retrieved, saved, conflicts, newSeq, err := h.store.SyncItems(r.Context(), userUUID, req.Items, sinceSeq)
	if err != nil {
		h.log.Err(err).Msg("sync failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := SyncResponse{
		RetrievedItems: retrieved,
		SavedItems:     saved,
		Conflicts:      conflicts,
		SyncToken:      encodeSyncToken(newSeq),
	}

	if req.ComputeIntegrity {
		all, err := h.store.AllItems(r.Context(), userUUID)
		if err != nil {
			h.log.Err(err).Msg("integrity lookup failed")
		} else {
			resp.IntegrityHash = computeIntegrityHash(all)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// authMiddleware enforces a bearer token and stores the resolved user
// UUID in the request context, grounded on go-pass-keeper's
// middleware_auth.go but without the trace-ID plumbing this package
// doesn't carry.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		userUUID, err := h.tokens.parse(raw)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userUUIDCtxKey, userUUID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

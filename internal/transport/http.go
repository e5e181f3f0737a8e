// SPDX-License-Identifier: Apache-2.0

// Package transport implements the resty-based production RemoteClient
// for both internal/session and internal/syncengine (spec.md §1: the
// session/credential and sync HTTP endpoints are external collaborators;
// spec.md §6 names their wire shapes).
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/session"
	"github.com/halvard/notesync/internal/syncengine"
)

// ErrUnauthorized is returned when the server rejects the current bearer
// token (spec.md §7: stale session token surfaces as InvalidSyncSession).
var ErrUnauthorized = errors.New("transport: unauthorized")

// ErrConflict is returned on a 409, used by the account endpoints for a
// duplicate registration.
var ErrConflict = errors.New("transport: conflict")

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements session.RemoteClient and syncengine.RemoteClient over
// a JSON HTTP API, mirroring the wire shapes of spec.md §6.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

var (
	_ session.RemoteClient    = (*Client)(nil)
	_ syncengine.RemoteClient = (*Client)(nil)
)

// New constructs a Client against cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	return &Client{http: cli}
}

// SetToken stores the bearer token attached to authenticated requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// Token returns the currently stored bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) authedRequest(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token := c.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

type keyParamsDTO struct {
	Version    string `json:"version"`
	Identifier string `json:"identifier"`
	PwNonce    string `json:"pw_nonce,omitempty"`
	PwSalt     string `json:"pw_salt,omitempty"`
	PwCost     int    `json:"pw_cost,omitempty"`
}

func toKeyParamsDTO(kp keys.KeyParams) keyParamsDTO {
	return keyParamsDTO{Version: string(kp.Version), Identifier: kp.Identifier, PwNonce: kp.PwNonce, PwSalt: kp.PwSalt, PwCost: kp.PwCost}
}

func (d keyParamsDTO) toKeyParams() keys.KeyParams {
	return keys.KeyParams{Version: keys.Version(d.Version), Identifier: d.Identifier, PwNonce: d.PwNonce, PwSalt: d.PwSalt, PwCost: d.PwCost}
}

type keyParamsResponseDTO struct {
	KeyParams keyParamsDTO `json:"key_params"`
}

// RequestKeyParams fetches the key params needed to re-derive a root key
// for email (spec.md §4.5 step 3, and the unauthenticated leg of sign-in).
func (c *Client) RequestKeyParams(ctx context.Context, email string) (session.KeyParamsResponse, error) {
	var out keyParamsResponseDTO
	resp, err := c.http.R().SetContext(ctx).
		SetQueryParam("email", email).
		SetResult(&out).
		Get("/api/auth/key-params")
	if err != nil {
		return session.KeyParamsResponse{}, fmt.Errorf("request key params: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return session.KeyParamsResponse{}, err
	}
	return session.KeyParamsResponse{KeyParams: out.KeyParams.toKeyParams()}, nil
}

type registerRequestDTO struct {
	Email          string       `json:"email"`
	ServerPassword string       `json:"server_password"`
	KeyParams      keyParamsDTO `json:"key_params"`
}

type registerResponseDTO struct {
	UserUUID string `json:"user_uuid"`
}

// Register creates a new account (spec.md §4's Session/Credential Service).
func (c *Client) Register(ctx context.Context, req session.RegisterRequest) (session.RegisterResponse, error) {
	var out registerResponseDTO
	resp, err := c.http.R().SetContext(ctx).
		SetBody(registerRequestDTO{Email: req.Email, ServerPassword: req.ServerPassword, KeyParams: toKeyParamsDTO(req.KeyParams)}).
		SetResult(&out).
		Post("/api/auth/register")
	if err != nil {
		return session.RegisterResponse{}, fmt.Errorf("register request: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return session.RegisterResponse{}, err
	}
	return session.RegisterResponse{UserUUID: out.UserUUID}, nil
}

type signInRequestDTO struct {
	Email          string `json:"email"`
	ServerPassword string `json:"server_password"`
}

type signInResponseDTO struct {
	UserUUID  string       `json:"user_uuid"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	KeyParams keyParamsDTO `json:"key_params"`
}

// SignIn authenticates against the server and, on success, stores the
// returned bearer token for subsequent authenticated requests.
func (c *Client) SignIn(ctx context.Context, req session.SignInRequest) (session.SignInResponse, error) {
	var out signInResponseDTO
	resp, err := c.http.R().SetContext(ctx).
		SetBody(signInRequestDTO{Email: req.Email, ServerPassword: req.ServerPassword}).
		SetResult(&out).
		Post("/api/auth/sign-in")
	if err != nil {
		return session.SignInResponse{}, fmt.Errorf("sign in request: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return session.SignInResponse{}, err
	}

	c.SetToken(out.Token)
	return session.SignInResponse{UserUUID: out.UserUUID, Token: out.Token, ExpiresAt: out.ExpiresAt, KeyParams: out.KeyParams.toKeyParams()}, nil
}

type changePasswordRequestDTO struct {
	Email                 string       `json:"email"`
	CurrentServerPassword string       `json:"current_server_password"`
	NewServerPassword     string       `json:"new_server_password"`
	NewKeyParams          keyParamsDTO `json:"new_key_params"`
}

type changePasswordResponseDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChangePassword rotates the account's server password and key params.
func (c *Client) ChangePassword(ctx context.Context, req session.ChangePasswordRequest) (session.ChangePasswordResponse, error) {
	var out changePasswordResponseDTO
	resp, err := c.authedRequest(ctx).
		SetBody(changePasswordRequestDTO{
			Email:                 req.Email,
			CurrentServerPassword: req.CurrentServerPassword,
			NewServerPassword:     req.NewServerPassword,
			NewKeyParams:          toKeyParamsDTO(req.NewKeyParams),
		}).
		SetResult(&out).
		Post("/api/auth/change-password")
	if err != nil {
		return session.ChangePasswordResponse{}, fmt.Errorf("change password request: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return session.ChangePasswordResponse{}, err
	}

	c.SetToken(out.Token)
	return session.ChangePasswordResponse{Token: out.Token, ExpiresAt: out.ExpiresAt}, nil
}

type wireItemDTO struct {
	UUID        string `json:"uuid"`
	ContentType string `json:"content_type"`
	Content     string `json:"content,omitempty"`
	EncItemKey  string `json:"enc_item_key,omitempty"`
	ItemsKeyID  string `json:"items_key_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	Deleted     bool   `json:"deleted"`
	AuthHash    string `json:"auth_hash,omitempty"`
}

func toWireItemDTO(wi syncengine.WireItem) wireItemDTO {
	return wireItemDTO{
		UUID: wi.UUID, ContentType: wi.ContentType, Content: wi.Content,
		EncItemKey: wi.EncItemKey, ItemsKeyID: wi.ItemsKeyID,
		CreatedAt: wi.CreatedAt, UpdatedAt: wi.UpdatedAt,
		Deleted: wi.Deleted, AuthHash: wi.AuthHash,
	}
}

func (d wireItemDTO) toWireItem() syncengine.WireItem {
	return syncengine.WireItem{
		UUID: d.UUID, ContentType: d.ContentType, Content: d.Content,
		EncItemKey: d.EncItemKey, ItemsKeyID: d.ItemsKeyID,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
		Deleted: d.Deleted, AuthHash: d.AuthHash,
	}
}

type conflictEntryDTO struct {
	Type        string       `json:"type"`
	ServerItem  *wireItemDTO `json:"server_item,omitempty"`
	UnsavedItem *wireItemDTO `json:"unsaved_item,omitempty"`
}

type syncRequestDTO struct {
	API              string        `json:"api"`
	Items            []wireItemDTO `json:"items"`
	SyncToken        string        `json:"sync_token,omitempty"`
	CursorToken      string        `json:"cursor_token,omitempty"`
	Limit            int           `json:"limit,omitempty"`
	ComputeIntegrity bool          `json:"compute_integrity"`
}

type syncResponseDTO struct {
	RetrievedItems []wireItemDTO      `json:"retrieved_items"`
	SavedItems     []wireItemDTO      `json:"saved_items"`
	Conflicts      []conflictEntryDTO `json:"conflicts"`
	SyncToken      string             `json:"sync_token"`
	CursorToken    string             `json:"cursor_token,omitempty"`
	IntegrityHash  string             `json:"integrity_hash,omitempty"`
}

// apiVersion is the sync wire protocol tag spec.md §6 names in the
// request envelope ("api").
const apiVersion = "20200115"

// Sync implements syncengine.RemoteClient over the sync wire shape of
// spec.md §6.
func (c *Client) Sync(ctx context.Context, req syncengine.SyncRequest) (syncengine.SyncResponse, error) {
	items := make([]wireItemDTO, len(req.Items))
	for i, wi := range req.Items {
		items[i] = toWireItemDTO(wi)
	}

	var out syncResponseDTO
	resp, err := c.authedRequest(ctx).
		SetBody(syncRequestDTO{
			API: apiVersion, Items: items, SyncToken: req.SyncToken,
			CursorToken: req.CursorToken, Limit: req.Limit, ComputeIntegrity: req.ComputeIntegrity,
		}).
		SetResult(&out).
		Post("/api/sync")
	if err != nil {
		return syncengine.SyncResponse{}, fmt.Errorf("sync request: %w", err)
	}
	if err := mapHTTPError(resp); err != nil {
		return syncengine.SyncResponse{}, err
	}

	retrieved := make([]syncengine.WireItem, len(out.RetrievedItems))
	for i, d := range out.RetrievedItems {
		retrieved[i] = d.toWireItem()
	}
	saved := make([]syncengine.WireItem, len(out.SavedItems))
	for i, d := range out.SavedItems {
		saved[i] = d.toWireItem()
	}
	conflicts := make([]syncengine.ConflictEntry, len(out.Conflicts))
	for i, d := range out.Conflicts {
		ce := syncengine.ConflictEntry{Type: d.Type}
		if d.ServerItem != nil {
			wi := d.ServerItem.toWireItem()
			ce.ServerItem = &wi
		}
		if d.UnsavedItem != nil {
			wi := d.UnsavedItem.toWireItem()
			ce.UnsavedItem = &wi
		}
		conflicts[i] = ce
	}

	return syncengine.SyncResponse{
		RetrievedItems: retrieved, SavedItems: saved, Conflicts: conflicts,
		SyncToken: out.SyncToken, CursorToken: out.CursorToken, IntegrityHash: out.IntegrityHash,
	}, nil
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusConflict:
		return ErrConflict
	}
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode(), body)
}

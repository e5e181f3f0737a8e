// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/halvard/notesync/internal/keys"
	"github.com/halvard/notesync/internal/payload"
)

// authModel is the login/registration screen, grounded on go-pass-
// keeper's LoginModel/RegisterModel but merged into one form since this
// demo has no separate menu page to choose between them — ctrl+r toggles
// mode instead.
type authModel struct {
	ctx context.Context
	svc *Services

	inputs     []textinput.Model
	focus      int
	register   bool
	submitting bool
	errMsg     string
}

func newAuthModel(ctx context.Context, svc *Services) *authModel {
	email := textinput.New()
	email.Placeholder = "email"
	email.Width = 40
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Width = 40
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'

	return &authModel{ctx: ctx, svc: svc, inputs: []textinput.Model{email, password}}
}

func (m *authModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *authModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if result, ok := msg.(authResultMsg); ok {
		m.submitting = false
		if result.err != nil {
			m.errMsg = result.err.Error()
			return m, nil
		}
		m.svc.Engine.SetRootKey(result.rootKey)
		if result.created {
			if err := bootstrapItemsKey(m.svc); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
		}
		return m, func() tea.Msg { return NavigateTo{Page: "notes"} }
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}

	switch keyMsg.String() {
	case "ctrl+r":
		m.register = !m.register
		m.errMsg = ""
		return m, nil
	case "tab", "shift+tab":
		m.focus = (m.focus + 1) % len(m.inputs)
		for i := range m.inputs {
			if i == m.focus {
				m.inputs[i].Focus()
			} else {
				m.inputs[i].Blur()
			}
		}
		return m, nil
	case "enter":
		if m.submitting {
			return m, nil
		}
		email := strings.TrimSpace(m.inputs[0].Value())
		password := m.inputs[1].Value()
		if email == "" || password == "" {
			m.errMsg = "email and password are required"
			return m, nil
		}
		m.errMsg = ""
		m.submitting = true
		return m, m.authenticate(email, password)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(keyMsg)
	return m, cmd
}

func (m *authModel) authenticate(email, password string) tea.Cmd {
	register := m.register
	svc := m.svc
	ctx := m.ctx
	return func() tea.Msg {
		if register {
			if _, err := svc.Session.Register(ctx, email, password); err != nil {
				return authResultMsg{err: err}
			}
		}
		sess, rootKey, err := svc.Session.SignIn(ctx, email, password)
		if err != nil {
			return authResultMsg{err: err}
		}
		return authResultMsg{userUUID: sess.UserUUID, rootKey: rootKey, created: register}
	}
}

// bootstrapItemsKey provisions the account's first SN|ItemsKey payload on
// registration, mirroring what a first-time client does before it can
// encrypt anything else (spec.md §4.1's default items key is otherwise
// assumed to already exist).
func bootstrapItemsKey(svc *Services) error {
	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return err
	}

	id := uuid.NewString()
	now := time.Now()
	svc.Ring.Add(&keys.ItemsKey{UUID: id, KeyMaterial: material, Version: keys.Version004, IsDefault: true, CreatedAt: now})

	p := payload.New(payload.Params{
		UUID:        id,
		ContentType: payload.ContentTypeItemsKey,
		Content:     payload.Content{"itemsKey": base64.StdEncoding.EncodeToString(material), "isDefault": true},
		DecryptedOK: true,
		CreatedAt:   now,
		UpdatedAt:   now,
		Dirty:       true,
		DirtiedDate: now,
		Source:      payload.SourceLocalChanged,
	})
	svc.Payloads.EmitPayloads([]*payload.Payload{p}, payload.SourceLocalChanged)
	return nil
}

func (m *authModel) View() string {
	mode := "Sign in"
	if m.register {
		mode = "Register"
	}
	out := titleStyle.Render("notesync — "+mode) + "\n\n"
	out += "Email:    [" + m.inputs[0].View() + "]\n"
	out += "Password: [" + m.inputs[1].View() + "]\n\n"
	if m.submitting {
		out += "working...\n\n"
	}
	if m.errMsg != "" {
		out += errorStyle.Render(m.errMsg) + "\n\n"
	}
	out += helpStyle.Render("tab field  ctrl+r toggle register/sign-in  enter submit  ctrl+c quit")
	return out
}

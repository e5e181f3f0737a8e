// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/halvard/notesync/internal/item"
	"github.com/halvard/notesync/internal/payload"
	"github.com/halvard/notesync/internal/syncengine"
)

// notesModel lists Note items from the Payload Manager and lets the user
// create one and trigger a manual sync, grounded on go-pass-keeper's
// listModel/formTextModel pair but rendering straight off the in-memory
// master collection instead of a fetched-from-server slice.
type notesModel struct {
	ctx context.Context
	svc *Services

	idx      int
	creating bool
	editing  string // uuid of the note being edited, empty when creating fresh
	inputs   []textinput.Model
	syncing  bool
	status   string
	lastErr  error
}

func (m *notesModel) startForm(title, text string) {
	m.creating = true
	titleInput := textinput.New()
	titleInput.Placeholder = "title"
	titleInput.Width = 40
	titleInput.SetValue(title)
	titleInput.Focus()
	textInput := textinput.New()
	textInput.Placeholder = "text"
	textInput.Width = m.editorWidth()
	textInput.SetValue(text)
	m.inputs = []textinput.Model{titleInput, textInput}
}

// editorWidth reads the persisted editorLeft preference (spec.md §8
// scenario 5), defaulting to 60 columns on a fresh install.
func (m *notesModel) editorWidth() int {
	w, _ := m.svc.Items.GetPreference("editorLeft", 60).(int)
	if w <= 0 {
		return 60
	}
	return w
}

func newNotesModel(ctx context.Context, svc *Services) *notesModel {
	return &notesModel{ctx: ctx, svc: svc}
}

func (m *notesModel) Init() tea.Cmd {
	return nil
}

func (m *notesModel) notes() []item.Note {
	var out []item.Note
	for _, p := range m.svc.Payloads.Snapshot().All() {
		if p.ContentType == payload.ContentTypeNote && !p.Deleted && p.DecryptedOK {
			out = append(out, item.AsNote(item.Wrap(p)))
		}
	}
	return out
}

func (m *notesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if result, ok := msg.(syncResultMsg); ok {
		m.syncing = false
		m.lastErr = result.err
		if result.err == nil {
			m.status = "synced"
		}
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.creating {
		return m.updateCreating(keyMsg)
	}

	switch keyMsg.String() {
	case "up", "k":
		if m.idx > 0 {
			m.idx--
		}
	case "down", "j":
		if m.idx < len(m.notes())-1 {
			m.idx++
		}
	case "n":
		m.startForm("", "")
	case "e":
		notes := m.notes()
		if m.idx >= 0 && m.idx < len(notes) {
			m.editing = notes[m.idx].UUID()
			m.startForm(notes[m.idx].Title(), notes[m.idx].Text())
		}
	case "d":
		m.deleteSelected()
	case "[":
		m.svc.Items.SetPreference("editorLeft", m.editorWidth()-10)
	case "]":
		m.svc.Items.SetPreference("editorLeft", m.editorWidth()+10)
	case "s":
		if !m.syncing {
			m.syncing = true
			m.status = ""
			m.lastErr = nil
			return m, m.sync()
		}
	case "l":
		return m, func() tea.Msg { return NavigateTo{Page: "auth"} }
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *notesModel) deleteSelected() {
	notes := m.notes()
	if m.idx < 0 || m.idx >= len(notes) {
		return
	}
	id := notes[m.idx].UUID()
	p, found := m.svc.Payloads.Find(id)
	if !found {
		return
	}
	tombstone := p.WithDeleted(true, true, time.Now())
	m.svc.Payloads.EmitPayloads([]*payload.Payload{tombstone}, payload.SourceLocalChanged)
}

func (m *notesModel) updateCreating(keyMsg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch keyMsg.String() {
	case "esc":
		m.creating = false
		m.editing = ""
		return m, nil
	case "tab", "shift+tab":
		if m.inputs[0].Focused() {
			m.inputs[0].Blur()
			m.inputs[1].Focus()
		} else {
			m.inputs[1].Blur()
			m.inputs[0].Focus()
		}
		return m, nil
	case "enter":
		if m.editing != "" {
			m.editNote(m.editing, m.inputs[0].Value(), m.inputs[1].Value())
		} else {
			m.createNote(m.inputs[0].Value(), m.inputs[1].Value())
		}
		m.creating = false
		m.editing = ""
		return m, nil
	}

	var cmd tea.Cmd
	if m.inputs[0].Focused() {
		m.inputs[0], cmd = m.inputs[0].Update(keyMsg)
	} else {
		m.inputs[1], cmd = m.inputs[1].Update(keyMsg)
	}
	return m, cmd
}

func (m *notesModel) createNote(title, text string) {
	now := time.Now()
	p := payload.New(payload.Params{
		UUID:        uuid.NewString(),
		ContentType: payload.ContentTypeNote,
		Content:     payload.Content{"title": title, "text": text},
		DecryptedOK: true,
		CreatedAt:   now,
		UpdatedAt:   now,
		Dirty:       true,
		DirtiedDate: now,
		Source:      payload.SourceLocalChanged,
	})
	m.svc.Payloads.EmitPayloads([]*payload.Payload{p}, payload.SourceLocalChanged)
}

// editNote runs an edit through the Item Manager rather than building a
// payload by hand, exercising the same changeItem path spec.md §4.2
// names for ordinary user edits.
func (m *notesModel) editNote(id, title, text string) {
	m.svc.Items.ChangeItem(id, item.MutationUserInteraction, func(_ item.Item, mut *item.Mutator) {
		mut.Set("title", title)
		mut.Set("text", text)
	})
}

func (m *notesModel) sync() tea.Cmd {
	ctx := m.ctx
	engine := m.svc.Engine
	mode := syncengine.ModeDefault
	if !engine.CompletedInitialSync() {
		mode = syncengine.ModeInitial
	}
	return func() tea.Msg {
		err := engine.Sync(ctx, syncengine.Options{Mode: mode, CheckIntegrity: true})
		if err == nil && mode == syncengine.ModeInitial {
			err = engine.Sync(ctx, syncengine.Options{Mode: syncengine.ModeDefault, CheckIntegrity: true})
		}
		return syncResultMsg{err: err}
	}
}

func (m *notesModel) View() string {
	if m.creating {
		out := titleStyle.Render("New note") + "\n\n"
		out += "Title: [" + m.inputs[0].View() + "]\n"
		out += "Text:  [" + m.inputs[1].View() + "]\n\n"
		out += helpStyle.Render("tab field  enter save  esc cancel")
		return out
	}

	out := titleStyle.Render("notesync") + "\n\n"
	notes := m.notes()
	if len(notes) == 0 {
		out += "no notes yet\n"
	}
	for i, n := range notes {
		cursor := blankChar
		if i == m.idx {
			cursor = cursorChar
		}
		out += fmt.Sprintf("%s%s\n", cursor, n.Title())
	}

	out += "\n"
	if m.syncing {
		out += "syncing...\n"
	} else if m.status != "" {
		out += m.status + "\n"
	}
	if m.lastErr != nil {
		out += errorStyle.Render(m.lastErr.Error()) + "\n"
	}
	if m.svc.Engine.OutOfSync() {
		out += errorStyle.Render("out of sync") + "\n"
	}

	out += "\n" + helpStyle.Render("n new  e edit  d delete  [ ] editor width  s sync  l sign out  q quit")
	return out
}

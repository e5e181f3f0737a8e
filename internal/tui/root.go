// SPDX-License-Identifier: Apache-2.0

package tui

import tea "github.com/charmbracelet/bubbletea"

// rootModel is the top-level router: it owns the global Ctrl+C quit
// hotkey and switches the active page on NavigateTo, grounded on
// go-pass-keeper's RootModel but without the build-info overlay this
// demo has no use for.
type rootModel struct {
	pages   map[string]tea.Model
	current tea.Model
}

func newRootModel(pages map[string]tea.Model, startPage string) rootModel {
	return rootModel{pages: pages, current: pages[startPage]}
}

func (r rootModel) Init() tea.Cmd {
	if r.current == nil {
		return nil
	}
	return r.current.Init()
}

func (r rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		return r, tea.Quit
	}

	if nav, ok := msg.(NavigateTo); ok {
		next, exists := r.pages[nav.Page]
		if !exists {
			return r, nil
		}
		r.current = next
		if nav.Payload != nil {
			return r, tea.Batch(r.current.Init(), func() tea.Msg { return nav.Payload })
		}
		return r, r.current.Init()
	}

	if r.current == nil {
		return r, nil
	}
	updated, cmd := r.current.Update(msg)
	r.current = updated
	return r, cmd
}

func (r rootModel) View() string {
	if r.current == nil {
		return ""
	}
	return r.current.View()
}

// SPDX-License-Identifier: Apache-2.0

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDispatchesInRegistrationOrder(t *testing.T) {
	d := New()
	var order []string
	d.Subscribe(func(ev Event) { order = append(order, "a:"+string(ev.Type)) })
	d.Subscribe(func(ev Event) { order = append(order, "b:"+string(ev.Type)) })

	d.EmitSimple(SignedIn)
	assert.Equal(t, []string{"a:SignedIn", "b:SignedIn"}, order)
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	d := New()
	calls := 0
	unsub := d.Subscribe(func(Event) { calls++ })
	d.EmitSimple(Started)
	unsub()
	d.EmitSimple(Started)
	assert.Equal(t, 1, calls)
}

func TestEventPayloadCarriesData(t *testing.T) {
	d := New()
	var got Event
	d.Subscribe(func(ev Event) { got = ev })
	d.Emit(Event{Type: ProtocolOutdated, Payload: map[string]any{"version": "002"}})
	assert.Equal(t, "002", got.Payload["version"])
}

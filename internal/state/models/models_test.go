package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestMarkDispatchedDeduplicatesAndSorts(t *testing.T) {
	var state ChannelState

	state.MarkDispatched("f1", "org/b")
	state.MarkDispatched("f1", "org/a")
	state.MarkDispatched("f1", "org/b")

	if !reflect.DeepEqual(state.Dispatches["f1"], []string{"org/a", "org/b"}) {
		t.Errorf("unexpected dispatch list: %v", state.Dispatches["f1"])
	}
}

func TestDispatchedSet(t *testing.T) {
	state := ChannelState{
		Dispatches: map[string][]string{"f1": {"org/a"}},
	}

	set := state.Dispatched("f1")
	if !set["org/a"] || set["org/b"] {
		t.Errorf("unexpected dispatched set: %v", set)
	}
	if len(state.Dispatched("unknown")) != 0 {
		t.Error("unknown fingerprint should yield an empty set")
	}
}

func TestDecodeChannelStateCurrentShape(t *testing.T) {
	raw := json.RawMessage(`{"fingerprint":"abc","dispatches":{"abc":["org/a"]}}`)

	state := DecodeChannelState(raw)
	if state.LastFingerprint != "abc" {
		t.Errorf("unexpected fingerprint: %s", state.LastFingerprint)
	}
	if !reflect.DeepEqual(state.Dispatches["abc"], []string{"org/a"}) {
		t.Errorf("unexpected dispatches: %v", state.Dispatches)
	}
}

func TestDecodeChannelStateLegacyShapes(t *testing.T) {
	tests := []struct {
		name            string
		raw             string
		wantFingerprint string
		wantDispatches  map[string][]string
	}{
		{
			name:            "bare hash string",
			raw:             `"deadbeef"`,
			wantFingerprint: "deadbeef",
			wantDispatches:  map[string][]string{},
		},
		{
			name:            "hash with flat dispatched list",
			raw:             `{"hash":"deadbeef","dispatched":["org/a","org/b"]}`,
			wantFingerprint: "deadbeef",
			wantDispatches:  map[string][]string{"deadbeef": {"org/a", "org/b"}},
		},
		{
			name:            "hash with dispatches map",
			raw:             `{"hash":"deadbeef","dispatches":{"deadbeef":["org/a"]}}`,
			wantFingerprint: "deadbeef",
			wantDispatches:  map[string][]string{"deadbeef": {"org/a"}},
		},
		{
			name:            "null entry",
			raw:             `null`,
			wantFingerprint: "",
			wantDispatches:  map[string][]string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			state := DecodeChannelState(json.RawMessage(tc.raw))
			if state.LastFingerprint != tc.wantFingerprint {
				t.Errorf("fingerprint: got %q, want %q", state.LastFingerprint, tc.wantFingerprint)
			}
			if !reflect.DeepEqual(state.Dispatches, tc.wantDispatches) {
				t.Errorf("dispatches: got %v, want %v", state.Dispatches, tc.wantDispatches)
			}
		})
	}
}

func TestDecodeChannelStateGarbage(t *testing.T) {
	state := DecodeChannelState(json.RawMessage(`[1,2,3]`))
	if state.LastFingerprint != "" || len(state.Dispatches) != 0 {
		t.Errorf("garbage entries should decode to an empty state, got %+v", state)
	}
}

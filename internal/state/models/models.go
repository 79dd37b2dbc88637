package models

import (
	"encoding/json"
	"sort"
)

// ChannelState is the durable per-channel record: the fingerprint of the
// last listing that was successfully handled, and for each observed
// fingerprint the set of target identifiers that have already been notified.
//
// A target appears under a fingerprint only after a dispatch attempt to it
// returned success, and LastFingerprint advances to a new value only once at
// least one target succeeded for it. A fully-failed change therefore gets
// retried in full on the next tick.
type ChannelState struct {
	LastFingerprint string              `json:"fingerprint"`
	Dispatches      map[string][]string `json:"dispatches"`
}

// Normalize ensures the mutable fields are usable after decoding.
func (s *ChannelState) Normalize() {
	if s.Dispatches == nil {
		s.Dispatches = make(map[string][]string)
	}
}

// MarkDispatched records a successful dispatch of fingerprint to target.
// Recording the same pair twice is a no-op; the per-fingerprint list stays
// sorted so persisted state is stable across runs.
func (s *ChannelState) MarkDispatched(fingerprint, target string) {
	s.Normalize()
	for _, existing := range s.Dispatches[fingerprint] {
		if existing == target {
			return
		}
	}
	targets := append(s.Dispatches[fingerprint], target)
	sort.Strings(targets)
	s.Dispatches[fingerprint] = targets
}

// Dispatched returns the set of targets already notified for fingerprint.
func (s *ChannelState) Dispatched(fingerprint string) map[string]bool {
	set := make(map[string]bool, len(s.Dispatches[fingerprint]))
	for _, target := range s.Dispatches[fingerprint] {
		set[target] = true
	}
	return set
}

// legacyChannelState covers every object shape the state file has carried
// over time: "hash" instead of "fingerprint", a flat "dispatched" list that
// predates per-fingerprint bookkeeping, and the current "dispatches" map.
type legacyChannelState struct {
	Fingerprint string              `json:"fingerprint"`
	Hash        string              `json:"hash"`
	Dispatched  []string            `json:"dispatched"`
	Dispatches  map[string][]string `json:"dispatches"`
}

// DecodeChannelState decodes a raw per-channel state entry, migrating legacy
// shapes in place instead of failing. Unrecognizable entries decode to an
// empty state, which only costs one redundant re-dispatch cycle.
func DecodeChannelState(raw json.RawMessage) ChannelState {
	var state ChannelState

	if len(raw) > 0 {
		// Oldest shape: a bare fingerprint string.
		var plain string
		if err := json.Unmarshal(raw, &plain); err == nil {
			state.LastFingerprint = plain
			state.Normalize()
			return state
		}

		var legacy legacyChannelState
		if err := json.Unmarshal(raw, &legacy); err == nil {
			state.LastFingerprint = legacy.Fingerprint
			if state.LastFingerprint == "" {
				state.LastFingerprint = legacy.Hash
			}

			switch {
			case legacy.Dispatches != nil:
				state.Dispatches = legacy.Dispatches
			case len(legacy.Dispatched) > 0 && state.LastFingerprint != "":
				// Flat list shape: the recorded targets belonged to
				// the stored fingerprint.
				state.Dispatches = map[string][]string{
					state.LastFingerprint: legacy.Dispatched,
				}
			}
		}
	}

	state.Normalize()
	return state
}

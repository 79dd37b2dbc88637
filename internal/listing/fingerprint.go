package listing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint computes a hex-encoded SHA-256 digest over the canonical form
// of a raw listing payload. The payload is decoded and re-encoded before
// hashing so that two payloads that differ only in object key order produce
// the same digest. Array order is preserved; it is part of the content
// identity of a listing. Numbers are carried through as json.Number so the
// digest never depends on float formatting.
//
// The digest is the sole equality oracle persisted across runs, so this
// function must stay pure and deterministic.
func Fingerprint(payload []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode listing payload: %w", err)
	}

	// encoding/json sorts map keys at every nesting level, which gives us
	// the canonical byte form for free.
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize listing payload: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Package snapshot persists the whole workshop document through a Backend
// and rehydrates the in-memory store from it. Every save is a
// compare-and-swap on the document revision.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"probikes/pkg/domain"
)

// Encode serialises doc as compact JSON with empty collections instead of
// nulls.
func Encode(doc domain.Document) ([]byte, error) {
	payload, err := json.Marshal(doc.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return payload, nil
}

// Decode parses a persisted payload. Empty, non-object or malformed payloads
// are reported as domain.ErrCorruptDocument.
func Decode(payload []byte) (domain.Document, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.Document{}, fmt.Errorf("%w: payload is not a JSON object", domain.ErrCorruptDocument)
	}
	var doc domain.Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrCorruptDocument, err)
	}
	return doc.Normalize(), nil
}

// PeekRevision returns the revision recorded inside payload, or zero when it
// cannot be read.
func PeekRevision(payload []byte) int64 {
	var head struct {
		Revision int64 `json:"revision"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return 0
	}
	return head.Revision
}

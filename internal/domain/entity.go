// Package domain holds the editor snapshot entity and its wire shapes.
// It has no dependencies on other packages.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Null is the JSON encoding of an absent snapshot.
var Null = json.RawMessage("null")

// Snapshot is the serialized whiteboard store plus bookkeeping.
// Data is opaque JSON; the server never interprets it.
type Snapshot struct {
	Data      json.RawMessage `json:"data"`
	Revision  int64           `json:"revision"`
	VersionID string          `json:"version_id,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSnapshot returns the empty snapshot served before the first write.
func NewSnapshot() *Snapshot {
	return &Snapshot{Data: Null}
}

// IsEmpty reports whether the snapshot holds no data (JSON null).
func (s *Snapshot) IsEmpty() bool {
	return s == nil || IsNull(s.Data)
}

// Clone returns a deep copy so callers can't alias the stored bytes.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = append(json.RawMessage(nil), s.Data...)
	if len(c.Data) == 0 {
		c.Data = Null
	}
	return &c
}

// StoreData is the response of getStoreData.
type StoreData struct {
	Data json.RawMessage `json:"data"`
}

// SaveInput is the input of saveStoreData. Any JSON value is accepted for Data.
type SaveInput struct {
	Data json.RawMessage `json:"data"`
}

// SaveResult is the response of saveStoreData. Data echoes what was stored.
type SaveResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// ClearResult is the response of clearStoreData.
type ClearResult struct {
	Success bool `json:"success"`
}

// IsNull reports whether raw is empty or the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, Null)
}

// Normalize validates raw and returns its compacted form. Empty input
// (an omitted or undefined value) becomes null.
func Normalize(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Null, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("invalid snapshot json: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

// DecodeSaveInput parses a saveStoreData input. The input must be a JSON
// object; a missing data key stores null.
func DecodeSaveInput(raw []byte) (SaveInput, error) {
	var in SaveInput
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || t[0] != '{' {
		return in, fmt.Errorf("input must be an object with a data field")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(t, &fields); err != nil {
		return in, fmt.Errorf("decode input: %w", err)
	}
	data, err := Normalize(fields["data"])
	if err != nil {
		return in, err
	}
	in.Data = data
	return in, nil
}

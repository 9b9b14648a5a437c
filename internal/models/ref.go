package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Ref is a relation to another record. It always carries the referenced
// id; Expanded is set when the record was joined in by the data layer.
// JSON renders the bare id for a plain reference and the joined object
// otherwise, so clients get the same shape for the same endpoint.
type Ref[T any] struct {
	ID       string
	Expanded *T
}

// RefTo returns a plain reference
func RefTo[T any](id string) Ref[T] {
	return Ref[T]{ID: id}
}

// Expand returns a reference with the joined record attached
func Expand[T any](id string, v T) Ref[T] {
	return Ref[T]{ID: id, Expanded: &v}
}

// IsZero reports an unset relation
func (r Ref[T]) IsZero() bool {
	return r.ID == "" && r.Expanded == nil
}

// IsExpanded reports whether the joined record is attached
func (r Ref[T]) IsExpanded() bool {
	return r.Expanded != nil
}

// MarshalJSON implements json.Marshaler
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Expanded != nil {
		return json.Marshal(r.Expanded)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// UnmarshalJSON accepts either an id string or a joined object carrying "id"
func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*r = Ref[T]{}

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		return json.Unmarshal(data, &r.ID)
	case data[0] == '{':
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		var idOnly struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &idOnly); err != nil {
			return err
		}
		r.ID = idOnly.ID
		r.Expanded = &v
		return nil
	default:
		return fmt.Errorf("invalid reference: %s", data)
	}
}

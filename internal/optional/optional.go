// Package optional carries partial-update fields. A field counts as set only
// when it was present in the request and is not blank after trimming.
package optional

import (
	"encoding/json"
	"fmt"
	"strings"
)

// String is a request field that may be absent, null, blank or set.
type String struct {
	value   string
	present bool
}

// Of returns a present String holding v.
func Of(v string) String {
	return String{value: v, present: true}
}

// FromForm builds a String from a multipart form lookup.
func FromForm(v string, ok bool) String {
	return String{value: v, present: ok}
}

// UnmarshalJSON marks the field present. A JSON null stays absent; booleans
// and numbers keep their literal text so "true" and true read the same.
func (s *String) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = String{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = String{value: v, present: true}
		return nil
	}
	var scalar interface{}
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	switch scalar.(type) {
	case bool, float64:
		*s = String{value: trimmed, present: true}
		return nil
	}
	return fmt.Errorf("optional: expected a string, got %s", trimmed)
}

// MarshalJSON writes the raw value or null.
func (s String) MarshalJSON() ([]byte, error) {
	if !s.present {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// Present reports whether the field appeared in the request at all.
func (s String) Present() bool { return s.present }

// IsSet reports whether the field should be applied.
func (s String) IsSet() bool {
	return s.present && strings.TrimSpace(s.value) != ""
}

// Value returns the raw value.
func (s String) Value() string { return s.value }

// Get returns the trimmed value and whether it should be applied.
func (s String) Get() (string, bool) {
	if !s.IsSet() {
		return "", false
	}
	return strings.TrimSpace(s.value), true
}

// ApplyTo copies the value into dst when set and reports whether it did.
func (s String) ApplyTo(dst *string) bool {
	v, ok := s.Get()
	if ok {
		*dst = v
	}
	return ok
}

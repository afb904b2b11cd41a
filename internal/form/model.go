// Package form derives field schemas from a live document, writes backend
// values back onto its controls and resets it between documents.
package form

import (
	"bytes"
	"encoding/json"
	"log"
)

// Kind selects the read and write strategy for a field.
type Kind string

const (
	KindText          Kind = "text"
	KindNumber        Kind = "number"
	KindDate          Kind = "date"
	KindEmail         Kind = "email"
	KindTel           Kind = "tel"
	KindTextarea      Kind = "textarea"
	KindSelect        Kind = "select"
	KindRadioGroup    Kind = "radio-group"
	KindCheckbox      Kind = "checkbox"
	KindCheckboxGroup Kind = "checkbox-group"
)

// Grouped reports whether the kind collapses several inputs into one field.
func (k Kind) Grouped() bool {
	return k == KindRadioGroup || k == KindCheckboxGroup
}

// Option is one choice of a select, radio group, checkbox group or custom
// dropdown.
type Option struct {
	Value    string `json:"value"`
	Text     string `json:"text"`
	Selected bool   `json:"selected,omitempty"`
	Checked  bool   `json:"checked,omitempty"`
	ID       string `json:"id,omitempty"`
}

// Bounds holds the declared min and max of date, time, number and range inputs.
type Bounds struct {
	Min string `json:"min,omitempty"`
	Max string `json:"max,omitempty"`
}

// FieldDescriptor is a snapshot of one logical form field.
type FieldDescriptor struct {
	Key      string `json:"-"`
	Kind     Kind   `json:"kind"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	ID       string `json:"id"`
	Required bool   `json:"required"`
	Label    string `json:"label"`

	Options      []Option `json:"options,omitempty"`
	CurrentValue any      `json:"currentValue,omitempty"`

	// Checked and Value describe a lone checkbox.
	Checked *bool  `json:"checked,omitempty"`
	Value   string `json:"value,omitempty"`

	*Bounds
}

// Schema maps field keys to descriptors, keeping first-seen key order.
type Schema struct {
	keys   []string
	fields map[string]*FieldDescriptor
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{fields: make(map[string]*FieldDescriptor)}
}

// Set adds d under d.Key. A descriptor already stored under the key is
// replaced in place and Set returns true.
func (s *Schema) Set(d *FieldDescriptor) bool {
	if _, exists := s.fields[d.Key]; exists {
		s.fields[d.Key] = d
		return true
	}
	s.keys = append(s.keys, d.Key)
	s.fields[d.Key] = d
	return false
}

// Get returns the descriptor stored under key.
func (s *Schema) Get(key string) (*FieldDescriptor, bool) {
	d, ok := s.fields[key]
	return d, ok
}

// Keys returns the field keys in order.
func (s *Schema) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	return len(s.keys)
}

// Fields returns the descriptors in key order.
func (s *Schema) Fields() []*FieldDescriptor {
	out := make([]*FieldDescriptor, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.fields[k])
	}
	return out
}

// CurrentValues returns the key to current value map of every field that has
// one.
func (s *Schema) CurrentValues() map[string]any {
	values := make(map[string]any, len(s.keys))
	for _, d := range s.Fields() {
		if d.CurrentValue != nil {
			values[d.Key] = d.CurrentValue
		}
	}
	return values
}

// MarshalJSON encodes the schema as a JSON object in key order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Schema) setLogged(d *FieldDescriptor) {
	if s.Set(d) {
		log.Printf("form.Extractor: key %q appears more than once, keeping the later control", d.Key)
	}
}

package form

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/a3tai/mcp-form-filler/internal/dom"
)

// DefaultRequiredClass is the label class marking a mandatory field.
const DefaultRequiredClass = "asterisk"

// KindOf maps a control to its field kind. The second result is false for
// controls that carry no data: buttons and file inputs.
func KindOf(n *html.Node) (Kind, bool) {
	switch t := dom.ControlType(n); t {
	case "submit", "button", "reset", "image", "file":
		return "", false
	case "radio":
		return KindRadioGroup, true
	case "checkbox":
		return KindCheckbox, true
	case "select-one", "select-multiple":
		return KindSelect, true
	case "textarea":
		return KindTextarea, true
	case "number", "range":
		return KindNumber, true
	case "date", "datetime-local", "time", "month", "week":
		return KindDate, true
	case "email":
		return KindEmail, true
	case "tel":
		return KindTel, true
	default:
		return KindText, true
	}
}

// hasBounds lists the input types whose min and max are copied.
var hasBounds = map[string]bool{
	"date": true, "datetime-local": true, "time": true, "number": true, "range": true,
}

// Extractor builds schemas from a document.
type Extractor struct {
	requiredClass string
}

// NewExtractor creates an extractor. requiredClass is the label class that
// marks a field as mandatory; empty means DefaultRequiredClass.
func NewExtractor(requiredClass string) *Extractor {
	if requiredClass == "" {
		requiredClass = DefaultRequiredClass
	}
	return &Extractor{requiredClass: requiredClass}
}

// Extract walks the controls under scope and returns their schema. Labels are
// looked up across the whole document, as a browser's querySelector would.
func (e *Extractor) Extract(doc *dom.Document, scope *html.Node) *Schema {
	root := doc.Root()
	if scope == nil {
		scope = root
	}

	schema := NewSchema()
	radios := make(map[string]*FieldDescriptor)
	checkboxes := make(map[string][]*html.Node)
	var checkboxOrder []string

	for _, n := range dom.Controls(scope) {
		id, name := dom.AttrOr(n, "id"), dom.AttrOr(n, "name")
		if id == "" && name == "" {
			continue
		}
		kind, ok := KindOf(n)
		if !ok {
			continue
		}

		switch kind {
		case KindRadioGroup:
			group := name
			if group == "" {
				group = id
			}
			d, seen := radios[group]
			if !seen {
				d = &FieldDescriptor{
					Key:      group,
					Kind:     KindRadioGroup,
					Type:     "radio",
					Name:     group,
					ID:       id,
					Required: isRequired(root, n, e.requiredClass),
					Label:    resolveLabel(root, n),
				}
				radios[group] = d
				schema.setLogged(d)
			}
			d.Options = append(d.Options, e.memberOption(root, n))
			if dom.Checked(n) {
				d.CurrentValue = dom.Value(n)
			}
			continue

		case KindCheckbox:
			group := name
			if group == "" {
				group = id
			}
			if _, seen := checkboxes[group]; !seen {
				checkboxOrder = append(checkboxOrder, group)
				// Reserve the position of the first member.
				schema.setLogged(&FieldDescriptor{Key: group})
			}
			checkboxes[group] = append(checkboxes[group], n)
			continue
		}

		schema.setLogged(e.describe(root, n, kind))
	}

	for _, group := range checkboxOrder {
		if cur, _ := schema.Get(group); cur.Kind != "" {
			// A later control took the key.
			continue
		}
		schema.Set(e.describeCheckboxes(root, group, checkboxes[group]))
	}
	return schema
}

// describe builds the descriptor of an ungrouped control.
func (e *Extractor) describe(root, n *html.Node, kind Kind) *FieldDescriptor {
	id, name := dom.AttrOr(n, "id"), dom.AttrOr(n, "name")
	key := id
	if key == "" {
		key = name
	}
	if name == "" {
		name = id
	}
	t := dom.ControlType(n)

	d := &FieldDescriptor{
		Key:      key,
		Kind:     kind,
		Type:     t,
		Name:     name,
		ID:       id,
		Required: isRequired(root, n, e.requiredClass),
		Label:    resolveLabel(root, n),
	}

	switch kind {
	case KindSelect:
		opts := dom.Options(n)
		d.Options = make([]Option, 0, len(opts))
		for i, opt := range opts {
			d.Options = append(d.Options, Option{
				Value:    dom.OptionValue(opt),
				Text:     dom.OptionText(opt),
				Selected: dom.OptionSelected(n, i),
			})
		}
	case KindText:
		if t == "text" {
			d.Options = customDropdownOptions(n)
		}
	}

	if hasBounds[t] {
		lo, hi := dom.AttrOr(n, "min"), dom.AttrOr(n, "max")
		if lo != "" || hi != "" {
			d.Bounds = &Bounds{Min: lo, Max: hi}
		}
	}

	if v := dom.Value(n); strings.TrimSpace(v) != "" {
		d.CurrentValue = v
	}
	return d
}

// describeCheckboxes builds one descriptor for the checkboxes sharing group.
func (e *Extractor) describeCheckboxes(root *html.Node, group string, members []*html.Node) *FieldDescriptor {
	first := members[0]
	d := &FieldDescriptor{
		Key:      group,
		Type:     "checkbox",
		Name:     group,
		ID:       dom.AttrOr(first, "id"),
		Required: isRequired(root, first, e.requiredClass),
		Label:    resolveLabel(root, first),
	}

	if len(members) == 1 {
		checked := dom.Checked(first)
		d.Kind = KindCheckbox
		d.Checked = &checked
		d.Value = dom.Value(first)
		d.CurrentValue = checked
		return d
	}

	d.Kind = KindCheckboxGroup
	var on []string
	for _, n := range members {
		d.Options = append(d.Options, e.memberOption(root, n))
		if dom.Checked(n) {
			on = append(on, dom.Value(n))
		}
	}
	if len(on) > 0 {
		d.CurrentValue = strings.Join(on, ",")
	}
	return d
}

// memberOption describes one radio or checkbox of a group.
func (e *Extractor) memberOption(root, n *html.Node) Option {
	value := dom.Value(n)
	text := resolveLabel(root, n)
	if text == "" {
		text = value
	}
	return Option{
		Value:   value,
		Text:    text,
		Checked: dom.Checked(n),
		ID:      dom.AttrOr(n, "id"),
	}
}

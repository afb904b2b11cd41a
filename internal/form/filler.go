package form

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/a3tai/mcp-form-filler/internal/dom"
)

// Filler writes backend values onto the controls of a document.
type Filler struct {
	doc   *dom.Document
	scope *html.Node
}

// NewFiller creates a filler resolving keys under scope. A nil scope means
// the whole document.
func NewFiller(doc *dom.Document, scope *html.Node) *Filler {
	if scope == nil {
		scope = doc.Root()
	}
	return &Filler{doc: doc, scope: scope}
}

// Fill applies values and reports what happened. Each key is attempted
// exactly once; a failing key never stops the others. Controls that are
// written receive input and change events, unresolved keys receive nothing.
func (f *Filler) Fill(values map[string]any) *FillOutcome {
	out := &FillOutcome{
		NotFound: []MissingField{},
		Errors:   []FieldError{},
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		el := f.Resolve(key)
		if el == nil {
			log.Printf("form.Filler: no control for %q", key)
			out.NotFound = append(out.NotFound, MissingField{Key: key})
			continue
		}

		written, missing, err := f.apply(key, el, values[key])
		switch {
		case err != nil:
			log.Printf("form.Filler: failed to write %q: %v", key, err)
			out.Errors = append(out.Errors, FieldError{Key: key, Message: err.Error()})
		case missing != nil:
			log.Printf("form.Filler: %s has no match", missing)
			out.NotFound = append(out.NotFound, *missing)
		default:
			for _, n := range written {
				f.doc.Dispatch(n, dom.EventInput)
				f.doc.Dispatch(n, dom.EventChange)
			}
			out.FilledCount++
		}
	}

	out.Success = len(out.NotFound) == 0 && len(out.Errors) == 0
	return out
}

// Resolve finds the control for key: by name first, then by id.
func (f *Filler) Resolve(key string) *html.Node {
	if key == "" {
		return nil
	}
	controls := dom.Controls(f.scope)
	for _, n := range controls {
		if dom.AttrOr(n, "name") == key {
			return n
		}
	}
	for _, n := range controls {
		if dom.AttrOr(n, "id") == key {
			return n
		}
	}
	return nil
}

// apply writes v onto el. It returns the written controls, or a missing
// entry when v names no member of a select or group.
func (f *Filler) apply(key string, el *html.Node, v any) (written []*html.Node, missing *MissingField, err error) {
	defer func() {
		if r := recover(); r != nil {
			written, missing = nil, nil
			err = fmt.Errorf("panic while writing: %v", r)
		}
	}()

	switch dom.ControlType(el) {
	case "checkbox":
		if group := f.checkboxGroup(el); len(group) > 1 {
			return f.applyCheckboxGroup(key, group, v)
		}
		dom.SetChecked(el, Truthy(v))
		return []*html.Node{el}, nil, nil

	case "radio":
		want := Stringify(v)
		for _, r := range dom.RadioGroup(el) {
			if dom.Value(r) == want {
				dom.SetChecked(r, true)
				return []*html.Node{r}, nil, nil
			}
		}
		return nil, &MissingField{Key: key, Control: "radio", Attempted: want}, nil

	case "select-one", "select-multiple":
		for i, opt := range dom.Options(el) {
			if LooseEqual(dom.OptionValue(opt), v) {
				dom.SelectIndex(el, i)
				return []*html.Node{el}, nil, nil
			}
		}
		return nil, &MissingField{Key: key, Control: "select", Attempted: Stringify(v)}, nil

	case "date":
		s, ok := NormalizeDate(Stringify(v))
		if !ok {
			return nil, nil, fmt.Errorf("value %q is not a valid date", Stringify(v))
		}
		return []*html.Node{el}, nil, dom.SetValue(el, s)

	case "number", "range":
		s := Stringify(v)
		if !validNumber(s) {
			return nil, nil, fmt.Errorf("value %q is not a number", s)
		}
		return []*html.Node{el}, nil, dom.SetValue(el, strings.TrimSpace(s))
	}

	if err := dom.SetValue(el, Stringify(v)); err != nil {
		return nil, nil, err
	}
	return []*html.Node{el}, nil, nil
}

// checkboxGroup returns the checkboxes under the scope sharing el's name.
func (f *Filler) checkboxGroup(el *html.Node) []*html.Node {
	name := dom.AttrOr(el, "name")
	if name == "" {
		return []*html.Node{el}
	}
	return dom.Descendants(f.scope, func(n *html.Node) bool {
		return dom.IsControl(n) && dom.ControlType(n) == "checkbox" && dom.AttrOr(n, "name") == name
	})
}

// applyCheckboxGroup treats v as the set of member values to check: a list or
// a comma-separated string. Every value must name a member.
func (f *Filler) applyCheckboxGroup(key string, group []*html.Node, v any) ([]*html.Node, *MissingField, error) {
	var wanted []string
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			wanted = append(wanted, Stringify(e))
		}
	case []string:
		wanted = x
	case string:
		for _, part := range strings.Split(x, ",") {
			if part = strings.TrimSpace(part); part != "" {
				wanted = append(wanted, part)
			}
		}
	default:
		return nil, &MissingField{Key: key, Control: "checkbox-group", Attempted: Stringify(v)}, nil
	}

	members := make(map[string]bool, len(group))
	for _, n := range group {
		members[dom.Value(n)] = true
	}
	set := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		if !members[w] {
			return nil, &MissingField{Key: key, Control: "checkbox-group", Attempted: w}, nil
		}
		set[w] = true
	}

	for _, n := range group {
		dom.SetChecked(n, set[dom.Value(n)])
	}
	return group, nil, nil
}

package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// inputTypes lists the input types a browser recognises; anything else is "text".
var inputTypes = map[string]bool{
	"button": true, "checkbox": true, "color": true, "date": true,
	"datetime-local": true, "email": true, "file": true, "hidden": true,
	"image": true, "month": true, "number": true, "password": true,
	"radio": true, "range": true, "reset": true, "search": true,
	"submit": true, "tel": true, "text": true, "time": true,
	"url": true, "week": true,
}

// ControlType returns the control's type the way HTMLInputElement.type does:
// the lower-cased input type, "select-one"/"select-multiple" or "textarea".
func ControlType(n *html.Node) string {
	switch {
	case IsTag(n, atom.Input):
		t := strings.ToLower(strings.TrimSpace(AttrOr(n, "type")))
		if !inputTypes[t] {
			return "text"
		}
		return t
	case IsTag(n, atom.Select):
		if HasAttr(n, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	case IsTag(n, atom.Textarea):
		return "textarea"
	}
	return TagName(n)
}

// Value returns the current value of a control.
func Value(n *html.Node) string {
	switch {
	case IsTag(n, atom.Input):
		v, ok := Attr(n, "value")
		if !ok {
			switch ControlType(n) {
			case "checkbox", "radio":
				return "on"
			}
		}
		return v
	case IsTag(n, atom.Textarea):
		return TextContent(n)
	case IsTag(n, atom.Select):
		opts := Options(n)
		if i := SelectedIndex(n); i >= 0 {
			return OptionValue(opts[i])
		}
	}
	return ""
}

// SetValue assigns a value to a control. Assigning a non-empty value to a file
// input fails, matching the browser's InvalidStateError, and so does a select
// value that names none of its options.
func SetValue(n *html.Node, v string) error {
	switch {
	case IsTag(n, atom.Input):
		if ControlType(n) == "file" && v != "" {
			return fmt.Errorf("cannot set value of a file input")
		}
		SetAttr(n, "value", v)
		return nil
	case IsTag(n, atom.Textarea):
		SetTextContent(n, v)
		return nil
	case IsTag(n, atom.Select):
		for i, opt := range Options(n) {
			if OptionValue(opt) == v {
				SelectIndex(n, i)
				return nil
			}
		}
		return fmt.Errorf("select has no option with value %q", v)
	}
	return fmt.Errorf("element <%s> has no value", TagName(n))
}

// Checked reports whether a checkbox or radio is checked.
func Checked(n *html.Node) bool {
	return HasAttr(n, "checked")
}

// SetChecked checks or unchecks a checkbox or radio. Checking a radio unchecks
// the other radios of its group within the same form owner.
func SetChecked(n *html.Node, on bool) {
	if !on {
		RemoveAttr(n, "checked")
		return
	}
	SetAttr(n, "checked", "")
	if ControlType(n) != "radio" {
		return
	}
	name := AttrOr(n, "name")
	if name == "" {
		return
	}
	for _, other := range RadioGroup(n) {
		if other != n {
			RemoveAttr(other, "checked")
		}
	}
}

// RadioGroup returns the radios sharing n's name within n's form owner.
func RadioGroup(n *html.Node) []*html.Node {
	name := AttrOr(n, "name")
	if name == "" {
		return []*html.Node{n}
	}
	return Descendants(FormOwner(n), func(c *html.Node) bool {
		return IsTag(c, atom.Input) && ControlType(c) == "radio" && AttrOr(c, "name") == name
	})
}

// FormOwner returns the closest enclosing form, or the top of the tree.
func FormOwner(n *html.Node) *html.Node {
	if form := Closest(n.Parent, ByTag(atom.Form)); form != nil {
		return form
	}
	top := n
	for top.Parent != nil {
		top = top.Parent
	}
	return top
}

// Options returns the option elements of a select, including those in optgroups.
func Options(sel *html.Node) []*html.Node {
	return Descendants(sel, ByTag(atom.Option))
}

// OptionValue returns the value attribute of an option, falling back to its text.
func OptionValue(opt *html.Node) string {
	if v, ok := Attr(opt, "value"); ok {
		return v
	}
	return OptionText(opt)
}

// OptionText returns the whitespace-collapsed visible text of an option.
func OptionText(opt *html.Node) string {
	return strings.Join(strings.Fields(TextContent(opt)), " ")
}

// SelectedIndex returns the index of the selected option. A single-select with
// no explicit selection selects its first option; -1 means nothing is selected.
func SelectedIndex(sel *html.Node) int {
	opts := Options(sel)
	selected := -1
	for i, opt := range opts {
		if HasAttr(opt, "selected") {
			selected = i
			if HasAttr(sel, "multiple") {
				return i
			}
		}
	}
	if selected < 0 && len(opts) > 0 && !HasAttr(sel, "multiple") {
		return 0
	}
	return selected
}

// OptionSelected reports whether the i-th option of sel is selected.
func OptionSelected(sel *html.Node, i int) bool {
	if HasAttr(sel, "multiple") {
		opts := Options(sel)
		return i >= 0 && i < len(opts) && HasAttr(opts[i], "selected")
	}
	return SelectedIndex(sel) == i
}

// SelectIndex selects the i-th option and deselects the others.
func SelectIndex(sel *html.Node, i int) {
	for j, opt := range Options(sel) {
		if j == i {
			SetAttr(opt, "selected", "")
		} else {
			RemoveAttr(opt, "selected")
		}
	}
}

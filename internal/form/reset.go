package form

import (
	"log"

	"golang.org/x/net/html"

	"github.com/a3tai/mcp-form-filler/internal/dom"
)

// ResetOptions configures the baseline a form is reset to.
type ResetOptions struct {
	// ProtectedDefaults maps a control id or name to the value it keeps.
	ProtectedDefaults map[string]string
	// RadioBaseline maps a radio group name to the value checked after reset.
	RadioBaseline map[string]string
}

// DefaultResetOptions keeps English as the language and marks documents as
// received electronically.
func DefaultResetOptions() ResetOptions {
	return ResetOptions{
		ProtectedDefaults: map[string]string{
			"language-input": "English",
			"language":       "English",
		},
		RadioBaseline: map[string]string{
			"receiptNature": "E",
		},
	}
}

// textLike lists the input types emptied on reset.
var textLike = map[string]bool{
	"text": true, "email": true, "tel": true, "number": true,
	"url": true, "search": true, "textarea": true,
}

// Reset restores the controls under scope to their baseline and dispatches a
// change event on each. It returns the number of controls reset.
func Reset(doc *dom.Document, scope *html.Node, opts ResetOptions) int {
	if scope == nil {
		scope = doc.Root()
	}

	var reset []*html.Node
	for _, n := range dom.Controls(scope) {
		if resetControl(n, opts) {
			reset = append(reset, n)
		}
	}

	for _, n := range dom.Descendants(scope, dom.ByClass(dropdownContainerClass)) {
		for _, btn := range dom.Descendants(n, dom.ByClass(dropdownClearClass)) {
			dom.AddClass(btn, "hidden")
		}
	}
	for _, n := range dom.Descendants(scope, dom.ByClass(dropdownSelectedClass)) {
		dom.RemoveClass(n, dropdownSelectedClass)
	}

	for _, n := range reset {
		doc.Dispatch(n, dom.EventChange)
	}
	log.Printf("form.Reset: reset %d control(s)", len(reset))
	return len(reset)
}

func resetControl(n *html.Node, opts ResetOptions) bool {
	t := dom.ControlType(n)
	switch {
	case textLike[t]:
		v := ""
		if def, ok := protectedDefault(n, opts); ok {
			v = def
		}
		return dom.SetValue(n, v) == nil
	case t == "date" || t == "datetime-local" || t == "time" || t == "month" || t == "week":
		return dom.SetValue(n, "") == nil
	case t == "radio":
		base, ok := opts.RadioBaseline[dom.AttrOr(n, "name")]
		dom.SetChecked(n, ok && dom.Value(n) == base)
		return true
	case t == "checkbox":
		dom.SetChecked(n, false)
		return true
	case t == "select-one" || t == "select-multiple":
		if len(dom.Options(n)) > 0 {
			dom.SelectIndex(n, 0)
		}
		return true
	}
	return false
}

func protectedDefault(n *html.Node, opts ResetOptions) (string, bool) {
	if v, ok := opts.ProtectedDefaults[dom.AttrOr(n, "id")]; ok && dom.HasAttr(n, "id") {
		return v, true
	}
	if v, ok := opts.ProtectedDefaults[dom.AttrOr(n, "name")]; ok && dom.HasAttr(n, "name") {
		return v, true
	}
	return "", false
}

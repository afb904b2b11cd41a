package form

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-filler/internal/dom"
)

// Custom dropdown widget convention: a text input inside a container whose
// panel holds a list of <li> choices.
const (
	dropdownContainerClass = "custom-dropdown-container"
	dropdownListClass      = "dropdown-list"
	dropdownSearchClass    = "dropdown-search"
	dropdownClearClass     = "dropdown-clear"
	dropdownSelectedClass  = "dropdown-item-selected"
)

var dropdownPanelClasses = []string{"dropdown-panel", "autocomplete-panel"}

// labelFor returns the first label of the document whose for attribute names id.
func labelFor(root *html.Node, id string) *html.Node {
	if id == "" {
		return nil
	}
	return dom.First(root, func(n *html.Node) bool {
		return dom.IsTag(n, atom.Label) && dom.AttrOr(n, "for") == id
	})
}

// collapsedText returns the text of n with runs of whitespace folded to one space.
func collapsedText(n *html.Node) string {
	return strings.Join(strings.Fields(dom.TextContent(n)), " ")
}

// resolveLabel finds a caption for n: a label pointing at its id, an
// enclosing label, a preceding sibling with text, aria-label, then title.
func resolveLabel(root, n *html.Node) string {
	if label := labelFor(root, dom.AttrOr(n, "id")); label != nil {
		return collapsedText(label)
	}
	if label := dom.Closest(n.Parent, dom.ByTag(atom.Label)); label != nil {
		return collapsedText(label)
	}
	if prev := dom.PreviousElementSibling(n); prev != nil {
		text := collapsedText(prev)
		if dom.IsTag(prev, atom.Label) || text != "" {
			return text
		}
	}
	if aria := dom.AttrOr(n, "aria-label"); aria != "" {
		return aria
	}
	return dom.AttrOr(n, "title")
}

// isRequired reports whether the label pointing at n carries requiredClass.
func isRequired(root, n *html.Node, requiredClass string) bool {
	label := labelFor(root, dom.AttrOr(n, "id"))
	return label != nil && dom.HasClass(label, requiredClass)
}

// dropdownContainer returns the custom dropdown container enclosing n.
func dropdownContainer(n *html.Node) *html.Node {
	return dom.Closest(n, dom.ByClass(dropdownContainerClass))
}

// customDropdownOptions lists the choices of the custom dropdown around n.
// It returns nil when n is not part of one.
func customDropdownOptions(n *html.Node) []Option {
	container := dropdownContainer(n)
	if container == nil {
		return nil
	}
	panel := dom.First(container, func(c *html.Node) bool {
		for _, class := range dropdownPanelClasses {
			if dom.HasClass(c, class) {
				return true
			}
		}
		return false
	})
	list := dom.First(panel, dom.ByClass(dropdownListClass))
	if list == nil {
		return nil
	}

	var options []Option
	for _, li := range dom.Descendants(list, dom.ByTag(atom.Li)) {
		if dom.First(li, dom.ByClass(dropdownSearchClass)) != nil {
			continue
		}
		text := collapsedText(li)
		if text == "" || strings.Contains(strings.ToLower(text), "no options") {
			continue
		}
		value := dom.AttrOr(li, "data-value")
		if value == "" {
			value = text
		}
		options = append(options, Option{Value: value, Text: text})
	}
	return options
}

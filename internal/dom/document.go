// Package dom provides a mutable, in-memory document built on golang.org/x/net/html.
//
// The tree is treated as the live DOM: control state (value, checked,
// selected) is stored in attributes and text nodes, and writes are announced
// to registered listeners as synthetic events so callers can observe them the
// way host-page frameworks observe input and change events.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Event types dispatched by writers.
const (
	EventInput  = "input"
	EventChange = "change"
)

// Event is a synthetic notification about a written control.
type Event struct {
	Type   string
	Target *html.Node
}

// Listener receives dispatched events.
type Listener func(Event)

// Document wraps a parsed HTML tree.
type Document struct {
	root *html.Node

	mu        sync.RWMutex
	listeners []Listener
}

// Parse parses an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// AddListener registers l for every event dispatched on the document.
func (d *Document) AddListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Dispatch notifies listeners that eventType happened on target.
func (d *Document) Dispatch(target *html.Node, eventType string) {
	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	ev := Event{Type: eventType, Target: target}
	for _, l := range listeners {
		l(ev)
	}
}

// Render serializes the current state of the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String returns the serialized document, or an empty string if rendering fails.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// GetElementByID returns the first element with the given id.
func (d *Document) GetElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return First(d.root, func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return ok && v == id
	})
}

// Scope returns the element with id formID if present, else the document root.
func (d *Document) Scope(formID string) *html.Node {
	if n := d.GetElementByID(formID); n != nil {
		return n
	}
	return d.root
}

// Controls returns every input, select and textarea below scope in document order.
func Controls(scope *html.Node) []*html.Node {
	return Descendants(scope, IsControl)
}

// IsControl reports whether n is an input, select or textarea element.
func IsControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Input, atom.Select, atom.Textarea:
		return true
	}
	return false
}

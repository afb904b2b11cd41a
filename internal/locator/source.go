// Package locator finds the PDF a page is about: a file selected in a file
// input, a file cached by an earlier detection, or a document shown in an
// embedded viewer iframe.
package locator

import (
	"sync"

	"github.com/a3tai/mcp-form-filler/internal/page"
)

// SourceKind discriminates PdfSource.
type SourceKind string

const (
	SourceBytes SourceKind = "bytes"
	SourceURL   SourceKind = "url"
)

// Origin records where a source was found.
type Origin string

const (
	OriginFileInput Origin = "file-input"
	OriginCache     Origin = "cache"
	OriginIframe    Origin = "iframe"
)

// PdfSource is either PDF bytes or a validated URL serving a PDF.
type PdfSource struct {
	Kind   SourceKind `json:"kind"`
	Origin Origin     `json:"origin"`
	File   *page.File `json:"file,omitempty"`
	URL    string     `json:"url,omitempty"`
	// Frame is the iframe src the URL was unwrapped from.
	Frame string `json:"frame,omitempty"`
}

// Describe returns a short human-readable name of the source.
func (s *PdfSource) Describe() string {
	if s.Kind == SourceBytes && s.File != nil {
		return "file " + s.File.Name
	}
	return s.URL
}

// Cache is a single-slot holder for a detected file. At most one file is
// held; Take empties the slot.
type Cache struct {
	mu   sync.Mutex
	file *page.File
}

// Store replaces the cached file.
func (c *Cache) Store(f page.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = &f
}

// Take returns the cached file and clears the slot.
func (c *Cache) Take() (*page.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.file
	c.file = nil
	return f, f != nil
}

// Peek reports whether a file is cached without consuming it.
func (c *Cache) Peek() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return "", false
	}
	return c.file.Name, true
}

// Invalidate clears the slot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = nil
}

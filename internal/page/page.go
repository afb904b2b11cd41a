// Package page models a loaded web page: its live document, its URL and the
// files a user has selected in its file inputs.
package page

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-filler/internal/dom"
)

// PDFContentType is the MIME type of PDF documents.
const PDFContentType = "application/pdf"

// File is a file selected in a file input, or downloaded from a URL.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Size returns the file size in bytes.
func (f *File) Size() int {
	return len(f.Data)
}

// IsPDF reports whether the file is a PDF by MIME type or file name.
func (f *File) IsPDF() bool {
	return f.ContentType == PDFContentType || strings.HasSuffix(strings.ToLower(f.Name), ".pdf")
}

// Page is a loaded document with its URL and file input selections.
type Page struct {
	doc *dom.Document
	url *url.URL

	mu    sync.RWMutex
	files map[*html.Node][]File
}

// New creates a page from a parsed document. rawURL may be empty.
func New(doc *dom.Document, rawURL string) (*Page, error) {
	p := &Page{
		doc:   doc,
		files: make(map[*html.Node][]File),
	}
	if rawURL != "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid page URL %q: %w", rawURL, err)
		}
		p.url = u
	}
	return p, nil
}

// Load parses markup and creates a page for it.
func Load(markup, rawURL string) (*Page, error) {
	doc, err := dom.ParseString(markup)
	if err != nil {
		return nil, err
	}
	return New(doc, rawURL)
}

// Document returns the live document.
func (p *Page) Document() *dom.Document {
	return p.doc
}

// URL returns the page URL, or nil if unknown.
func (p *Page) URL() *url.URL {
	return p.url
}

// Resolve resolves ref against the page URL. Without a page URL, ref is
// returned unchanged.
func (p *Page) Resolve(ref string) string {
	if p.url == nil {
		return ref
	}
	u, err := p.url.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// FileInputs returns every file input of the page in document order.
func (p *Page) FileInputs() []*html.Node {
	return dom.Descendants(p.doc.Root(), func(n *html.Node) bool {
		return dom.IsTag(n, atom.Input) && dom.ControlType(n) == "file"
	})
}

// Files returns the files currently selected in input.
func (p *Page) Files(input *html.Node) []File {
	p.mu.RLock()
	defer p.mu.RUnlock()
	files := p.files[input]
	out := make([]File, len(files))
	copy(out, files)
	return out
}

// AttachFile selects f in the file input named or identified by key and
// dispatches a change event on it, the way a user selection would. An empty
// key selects the first file input of the page.
func (p *Page) AttachFile(key string, f File) error {
	input := p.findFileInput(key)
	if input == nil {
		if key == "" {
			return fmt.Errorf("page has no file input")
		}
		return fmt.Errorf("no file input named %q", key)
	}
	if f.Name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if f.ContentType == "" && strings.EqualFold(path.Ext(f.Name), ".pdf") {
		f.ContentType = PDFContentType
	}

	p.mu.Lock()
	p.files[input] = []File{f}
	p.mu.Unlock()

	p.doc.Dispatch(input, dom.EventChange)
	return nil
}

// ClearFiles empties every file input selection.
func (p *Page) ClearFiles() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = make(map[*html.Node][]File)
}

func (p *Page) findFileInput(key string) *html.Node {
	for _, input := range p.FileInputs() {
		if key == "" || dom.AttrOr(input, "name") == key || dom.AttrOr(input, "id") == key {
			return input
		}
	}
	return nil
}

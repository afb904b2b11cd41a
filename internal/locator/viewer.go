package locator

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-filler/internal/dom"
	"github.com/a3tai/mcp-form-filler/internal/page"
)

// Viewer iframe conventions.
const (
	MarkerAttr       = "data-id-attr"
	MarkerValue      = "iFrame-id"
	StorageViewPath  = "storage/view"
	viewerFileParam  = "file"
	viewerPageSuffix = "viewer.html"
	viewerScript     = "pdf.js"
)

// IsCandidate reports whether n is an iframe that may show a PDF: it carries
// the viewer marker attribute, or its src mentions .pdf or the storage view.
func IsCandidate(n *html.Node) bool {
	if !dom.IsTag(n, atom.Iframe) {
		return false
	}
	if dom.AttrOr(n, MarkerAttr) == MarkerValue {
		return true
	}
	src := dom.AttrOr(n, "src")
	return strings.Contains(src, ".pdf") || strings.Contains(src, StorageViewPath)
}

// Candidates returns the resolved src of every candidate iframe of p in
// document order. Iframes without a src are skipped.
func Candidates(p *page.Page) []string {
	var out []string
	for _, n := range dom.Descendants(p.Document().Root(), IsCandidate) {
		src := strings.TrimSpace(dom.AttrOr(n, "src"))
		if src == "" {
			continue
		}
		out = append(out, p.Resolve(src))
	}
	return out
}

// MarkerFrame returns the iframe carrying the viewer marker attribute.
func MarkerFrame(p *page.Page) *html.Node {
	return dom.First(p.Document().Root(), dom.ByAttr(MarkerAttr, MarkerValue))
}

// ResolveViewerURL recovers the document URL from a PDF.js style viewer URL
// (.../viewer.html?file=...). Relative file parameters resolve against the
// viewer's own location. Anything else is returned unchanged.
func ResolveViewerURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if !strings.Contains(u.Path, viewerPageSuffix) && !strings.Contains(u.Path, viewerScript) {
		return raw
	}
	file := u.Query().Get(viewerFileParam)
	if file == "" {
		return raw
	}

	switch {
	case strings.HasPrefix(file, "http://"), strings.HasPrefix(file, "https://"):
		return file
	case strings.HasPrefix(file, "/"):
		return u.Scheme + "://" + u.Host + file
	}
	ref, err := url.Parse(file)
	if err != nil {
		return raw
	}
	base := *u
	base.RawQuery, base.Fragment = "", ""
	return base.ResolveReference(ref).String()
}

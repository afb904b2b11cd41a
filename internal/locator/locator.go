package locator

import (
	"context"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/net/html/atom"

	"github.com/a3tai/mcp-form-filler/internal/dom"
	"github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/page"
)

// Options configures a Locator.
type Options struct {
	Client         *http.Client
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
	MaxFileSize    int64
	RecentCapacity int
}

// Locator finds PDF sources on pages.
type Locator struct {
	client         *http.Client
	prober         *Prober
	requestTimeout time.Duration
	maxFileSize    int64
	recent         *RecentSet
}

// New creates a locator.
func New(opts Options) *Locator {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Locator{
		client:         client,
		prober:         NewProber(client, opts.ProbeTimeout),
		requestTimeout: timeout,
		maxFileSize:    opts.MaxFileSize,
		recent:         NewRecentSet(opts.RecentCapacity),
	}
}

// Recent returns the memory of probed iframe sources.
func (l *Locator) Recent() *RecentSet {
	return l.recent
}

// Forget clears the memory of probed iframe sources.
func (l *Locator) Forget() {
	l.recent.Clear()
}

// FromFileInputs returns the first file selected in any file input of p that
// is a PDF by MIME type or name.
func FromFileInputs(p *page.Page) (*page.File, bool) {
	for _, input := range p.FileInputs() {
		for _, f := range p.Files(input) {
			if f.IsPDF() {
				return &f, true
			}
		}
	}
	return nil, false
}

// Locate returns the best PDF source of p. File inputs win without any
// network traffic; a file cached by an earlier detection comes next and is
// consumed; otherwise candidate iframes are probed in document order and the
// first that serves a PDF wins.
func (l *Locator) Locate(ctx context.Context, p *page.Page, cache *Cache) (*PdfSource, error) {
	if f, ok := FromFileInputs(p); ok {
		log.Printf("locator.Locator: using %s from file input (%d bytes)", f.Name, f.Size())
		return &PdfSource{Kind: SourceBytes, Origin: OriginFileInput, File: f}, nil
	}

	if cache != nil {
		if f, ok := cache.Take(); ok {
			log.Printf("locator.Locator: using cached %s", f.Name)
			return &PdfSource{Kind: SourceBytes, Origin: OriginCache, File: f}, nil
		}
	}

	frames := Candidates(p)
	if len(frames) == 0 {
		return nil, errors.NewNotFoundError("no PDF source on page: no file input holds a PDF and no viewer iframe was found")
	}

	var lastErr error
	for _, src := range frames {
		target := ResolveViewerURL(src)
		if err := l.prober.Validate(ctx, target); err != nil {
			log.Printf("locator.Locator: skipping iframe %s: %v", src, err)
			lastErr = err
			continue
		}
		log.Printf("locator.Locator: iframe %s serves %s", src, target)
		return &PdfSource{Kind: SourceURL, Origin: OriginIframe, URL: target, Frame: src}, nil
	}
	return nil, errors.NewValidationError(lastErr, "no valid PDF content found in %d iframe(s)", len(frames))
}

// Fetch returns the bytes of src, downloading URL sources. The downloaded
// content must again declare a PDF content type.
func (l *Locator) Fetch(ctx context.Context, src *PdfSource) (*page.File, error) {
	if src.Kind == SourceBytes {
		if src.File == nil {
			return nil, errors.NewNotFoundError("source has no file")
		}
		return src.File, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, errors.NewValidationError(err, "invalid PDF URL %s", src.URL)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(err, "failed to download PDF from %s", src.URL)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.NewHTTPError(resp.StatusCode, string(body), "failed to download PDF from %s", src.URL)
	}
	ct := resp.Header.Get("Content-Type")
	if !IsPDFContentType(ct) {
		return nil, errors.NewValidationError(nil, "expected PDF but got %q", ct)
	}

	reader := io.Reader(resp.Body)
	if l.maxFileSize > 0 {
		reader = io.LimitReader(resp.Body, l.maxFileSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.NewTransportError(err, "failed to read PDF body")
	}
	if l.maxFileSize > 0 && int64(len(data)) > l.maxFileSize {
		return nil, errors.NewValidationError(nil, "PDF exceeds maximum size of %d bytes", l.maxFileSize)
	}

	return &page.File{
		Name:        fileName(resp.Request, src.URL),
		ContentType: page.PDFContentType,
		Data:        data,
	}, nil
}

func fileName(req *http.Request, fallback string) string {
	p := fallback
	if req != nil && req.URL != nil {
		p = req.URL.Path
	}
	name := path.Base(p)
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// DocumentIDSelector names the element holding the current document id.
const DocumentIDSelector = "documentIdDisplay"

// FindDocumentID returns the document id shown in the first span of the
// #documentIdDisplay element.
func FindDocumentID(p *page.Page) (string, error) {
	display := p.Document().GetElementByID(DocumentIDSelector)
	if display == nil {
		return "", errors.NewNotFoundError("document id not found: no #%s element", DocumentIDSelector)
	}
	span := dom.First(display, dom.ByTag(atom.Span))
	if span == nil {
		return "", errors.NewNotFoundError("document id not found: #%s has no span", DocumentIDSelector)
	}
	id := strings.TrimSpace(dom.TextContent(span))
	if id == "" {
		return "", errors.NewNotFoundError("document id not found: #%s span is empty", DocumentIDSelector)
	}
	return id, nil
}

package locator

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/page"
)

// DefaultProbeTimeout bounds each validation request.
const DefaultProbeTimeout = 10 * time.Second

// probeRange asks for the first KiB only.
const probeRange = "bytes=0-1023"

// IsPDFContentType reports whether a content-type header names a PDF. The
// check is a case-insensitive substring match so parameters such as charset
// are tolerated.
func IsPDFContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), page.PDFContentType)
}

// Prober checks that a URL serves PDF content.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber creates a prober. A nil client uses http.DefaultClient and a
// non-positive timeout uses DefaultProbeTimeout.
func NewProber(client *http.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{client: client, timeout: timeout}
}

// Validate issues a HEAD request for rawURL and checks its content type. When
// the server rejects HEAD with 405, or the request fails outright, it retries
// with a ranged GET. A nil error means the URL serves a PDF.
func (p *Prober) Validate(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return errors.NewValidationError(nil, "empty URL")
	}

	resp, err := p.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		log.Printf("locator.Prober: HEAD %s failed, retrying with GET: %v", rawURL, err)
		return p.validateWithGet(ctx, rawURL)
	}

	switch {
	case resp.StatusCode == http.StatusMethodNotAllowed:
		log.Printf("locator.Prober: HEAD not allowed for %s, retrying with GET", rawURL)
		return p.validateWithGet(ctx, rawURL)
	case !isSuccess(resp.StatusCode):
		return errors.NewValidationError(nil, "probe of %s returned HTTP %d", rawURL, resp.StatusCode)
	}
	return checkContentType(rawURL, resp.Header.Get("Content-Type"))
}

func (p *Prober) validateWithGet(ctx context.Context, rawURL string) error {
	resp, err := p.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return errors.NewValidationError(err, "probe of %s failed", rawURL)
	}
	if !isSuccess(resp.StatusCode) {
		return errors.NewValidationError(nil, "probe of %s returned HTTP %d", rawURL, resp.StatusCode)
	}
	return checkContentType(rawURL, resp.Header.Get("Content-Type"))
}

func (p *Prober) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", probeRange)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	// Headers are all a probe needs; the body is drained before cancel runs.
	drain(resp)
	return resp, nil
}

func checkContentType(rawURL, ct string) error {
	if !IsPDFContentType(ct) {
		return errors.NewValidationError(nil, "expected %s from %s, got %q", page.PDFContentType, rawURL, ct)
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

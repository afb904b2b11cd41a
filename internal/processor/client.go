// Package processor talks to the document-intelligence backend: it submits
// PDFs with form schemas, asks for summaries and manages stored documents.
package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/form"
)

// DefaultTimeout bounds each backend request.
const DefaultTimeout = 120 * time.Second

// Client calls the backend. Every call takes the configured endpoint, which
// is the URL of the schema processing route (for example .../process-pdf).
type Client struct {
	client *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithHTTP(&http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a client on top of an existing HTTP client.
func NewClientWithHTTP(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{client: hc}
}

// Summary is the result of a summarize call.
type Summary struct {
	Summary        string `json:"summary"`
	PagesProcessed int    `json:"pages_processed"`
}

// SearchResult is one stored document matching a search.
type SearchResult struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
}

// Submit sends the PDF and the schema to endpoint and returns the flat value
// map extracted by the backend.
func (c *Client) Submit(ctx context.Context, endpoint string, schema *form.Schema, pdf []byte) (map[string]any, error) {
	if err := checkEndpoint(endpoint); err != nil {
		return nil, err
	}
	if schema == nil {
		schema = form.NewSchema()
	}

	body := map[string]any{
		"pdfData":    EncodePDF(pdf),
		"formSchema": schema,
	}
	respBody, err := c.postJSON(ctx, endpoint, body, "process")
	if err != nil {
		return nil, err
	}
	return Normalize(respBody)
}

// Summarize sends the PDF to the summarize route derived from endpoint.
func (c *Client) Summarize(ctx context.Context, endpoint string, pdf []byte) (*Summary, error) {
	if err := checkEndpoint(endpoint); err != nil {
		return nil, err
	}

	body := map[string]any{
		"pdfData":    EncodePDF(pdf),
		"formSchema": map[string]any{},
	}
	respBody, err := c.postJSON(ctx, SummarizeURL(endpoint), body, "summarize")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success        bool   `json:"success"`
		Message        string `json:"message"`
		Summary        string `json:"summary"`
		PagesProcessed int    `json:"pages_processed"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.NewFormatError(err, "unmarshaling summarize response")
	}
	if !resp.Success {
		return nil, errors.NewBackendError(resp.Message)
	}
	return &Summary{Summary: resp.Summary, PagesProcessed: resp.PagesProcessed}, nil
}

// ProcessDocument asks the backend to extract values from a document it
// already stores, identified by documentID.
func (c *Client) ProcessDocument(ctx context.Context, endpoint, documentID string, schema *form.Schema, pageHTML string) (map[string]any, error) {
	if err := checkEndpoint(endpoint); err != nil {
		return nil, err
	}
	if documentID == "" {
		return nil, errors.NewNotFoundError("document id is required")
	}
	if schema == nil {
		schema = form.NewSchema()
	}

	body := map[string]any{
		"documentId":  documentID,
		"form_schema": schema,
		"pageHTML":    pageHTML,
	}
	respBody, err := c.postJSON(ctx, BaseURL(endpoint)+"/process", body, "process document")
	if err != nil {
		return nil, err
	}
	return Normalize(respBody)
}

// Upload stores a file on the backend and returns its document id.
func (c *Client) Upload(ctx context.Context, endpoint, filename string, data []byte) (string, error) {
	if err := checkEndpoint(endpoint); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, BaseURL(endpoint)+"/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	respBody, err := c.do(req, "upload")
	if err != nil {
		return "", err
	}
	var resp struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", errors.NewFormatError(err, "unmarshaling upload response")
	}
	if resp.DocumentID == "" {
		return "", errors.NewFormatError(nil, "upload response has no documentId")
	}
	return resp.DocumentID, nil
}

// Search lists stored documents matching query.
func (c *Client) Search(ctx context.Context, endpoint, query string) ([]SearchResult, error) {
	if err := checkEndpoint(endpoint); err != nil {
		return nil, err
	}

	u := BaseURL(endpoint) + "/search?" + url.Values{"query": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	respBody, err := c.do(req, "search")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.NewFormatError(err, "unmarshaling search response")
	}
	if resp.Results == nil {
		resp.Results = []SearchResult{}
	}
	return resp.Results, nil
}

// FetchDocument downloads the stored document with the given id.
func (c *Client) FetchDocument(ctx context.Context, endpoint, documentID string) ([]byte, error) {
	if err := checkEndpoint(endpoint); err != nil {
		return nil, err
	}

	u := BaseURL(endpoint) + "/document?" + url.Values{"id": {documentID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, "fetch document")
}

func (c *Client) postJSON(ctx context.Context, u string, body any, op string) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op)
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(err, "calling backend %s", op)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError(err, "reading %s response", op)
	}
	log.Printf("processor.Client: %s %s -> %d in %s", req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewHTTPError(resp.StatusCode, string(respBody), "backend %s error", op)
	}
	return respBody, nil
}

func checkEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.NewConfigError("API endpoint not configured")
	}
	return nil
}

// EncodePDF returns the base64 payload of pdf without any data URI prefix.
func EncodePDF(pdf []byte) string {
	return base64.StdEncoding.EncodeToString(pdf)
}

// DecodePDF decodes a base64 payload, accepting and discarding a data URI
// prefix such as "data:application/pdf;base64,".
func DecodePDF(s string) ([]byte, error) {
	s = StripDataURI(strings.TrimSpace(s))
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.NewValidationError(err, "invalid base64 PDF payload")
	}
	return data, nil
}

// StripDataURI removes a leading data URI header from s.
func StripDataURI(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

// BaseURL derives the backend root from the configured processing endpoint
// by dropping a trailing /process-pdf or /process route.
func BaseURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	for _, suffix := range []string{"/process-pdf", "/process"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}

// SummarizeURL derives the summarize route from the configured endpoint.
func SummarizeURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	return strings.Replace(base, "/process-pdf", "", 1) + "/summarize-direct"
}

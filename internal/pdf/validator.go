// Package pdf validates PDF payloads before they are sent to the backend.
package pdf

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/a3tai/mcp-form-filler/internal/errors"
)

// DefaultMaxFileSize is the largest accepted payload.
const DefaultMaxFileSize = 100 * 1024 * 1024

// headerWindow is how far into the payload the %PDF- marker may start.
const headerWindow = 1024

var header = []byte("%PDF-")

// textProbePages bounds how many pages are read when looking for text.
const textProbePages = 3

// Inspection describes a validated payload.
type Inspection struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Version   string `json:"version"`
	PageCount int    `json:"page_count"`
	HasText   bool   `json:"has_text"`
}

// Validator checks PDF payloads.
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator accepting payloads up to maxFileSize bytes.
func NewValidator(maxFileSize int64) *Validator {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Validator{maxFileSize: maxFileSize}
}

// MaxFileSize returns the configured size limit.
func (v *Validator) MaxFileSize() int64 {
	return v.maxFileSize
}

// Validate checks that data is a non-empty PDF within the size limit. The
// structure is then parsed for a page count and a text layer; parse failures
// are logged and leave those fields zero, the backend has the final word on
// documents it can render.
func (v *Validator) Validate(name string, data []byte) (*Inspection, error) {
	if len(data) == 0 {
		return nil, errors.NewValidationError(nil, "file is empty: %s", name)
	}
	if int64(len(data)) > v.maxFileSize {
		return nil, errors.NewValidationError(nil, "file too large: %d bytes (max: %d bytes)", len(data), v.maxFileSize)
	}
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	at := bytes.Index(window, header)
	if at < 0 {
		return nil, errors.NewValidationError(nil, "file is not a PDF: %s has no %s header", name, header)
	}

	in := &Inspection{
		Name:    name,
		Size:    len(data),
		Version: version(data[at+len(header):]),
	}
	in.PageCount = pageCount(data)
	n, hasText := probeText(data)
	if in.PageCount == 0 {
		in.PageCount = n
	}
	in.HasText = hasText
	return in, nil
}

// ValidateFile reads and validates a PDF from disk.
func (v *Validator) ValidateFile(path string) ([]byte, *Inspection, error) {
	if path == "" {
		return nil, nil, errors.NewValidationError(nil, "path cannot be empty")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil, errors.NewNotFoundError("file does not exist: %s", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, nil, errors.NewValidationError(nil, "path is a directory, not a file: %s", path)
	}
	if info.Size() > v.maxFileSize {
		return nil, nil, errors.NewValidationError(nil, "file too large: %d bytes (max: %d bytes)", info.Size(), v.maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read file: %w", err)
	}
	in, err := v.Validate(filepath.Base(path), data)
	if err != nil {
		return nil, nil, err
	}
	return data, in, nil
}

func version(rest []byte) string {
	end := 0
	for end < len(rest) && end < 4 && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	return strings.TrimRight(string(rest[:end]), ".")
}

// pageCount reads the page tree with pdfcpu in relaxed mode.
func pageCount(data []byte) (n int) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pdf.Validator: pdfcpu panicked: %v", r)
			n = 0
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		log.Printf("pdf.Validator: failed to read PDF context: %v", err)
		return 0
	}
	if err := ctx.EnsurePageCount(); err != nil {
		log.Printf("pdf.Validator: failed to ensure page count: %v", err)
		return 0
	}
	return ctx.PageCount
}

// probeText opens the payload with ledongthuc/pdf and reports its page count
// and whether any of the first pages carries extractable text.
func probeText(data []byte) (pages int, hasText bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pdf.Validator: text probe panicked: %v", r)
			pages, hasText = 0, false
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Printf("pdf.Validator: failed to open PDF for text probe: %v", err)
		return 0, false
	}
	pages = r.NumPage()
	for i := 1; i <= pages && i <= textProbePages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			return pages, true
		}
	}
	return pages, false
}

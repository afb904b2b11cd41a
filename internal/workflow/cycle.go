package workflow

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/locator"
	"github.com/a3tai/mcp-form-filler/internal/page"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/processor"
)

// Report is the result of a cycle that filled the form.
type Report struct {
	CycleID    string            `json:"cycle_id"`
	Source     string            `json:"source,omitempty"`
	DocumentID string            `json:"document_id,omitempty"`
	PDF        *pdf.Inspection   `json:"pdf,omitempty"`
	Fields     int               `json:"schema_fields"`
	Values     map[string]any    `json:"values"`
	Outcome    *form.FillOutcome `json:"outcome"`
	Message    string            `json:"message"`
	Severity   string            `json:"severity"`
}

// SummaryReport is the result of a summarize cycle.
type SummaryReport struct {
	CycleID        string          `json:"cycle_id"`
	Source         string          `json:"source"`
	PDF            *pdf.Inspection `json:"pdf,omitempty"`
	Summary        string          `json:"summary"`
	PagesProcessed int             `json:"pages_processed"`
}

// run is the state of one cycle.
type run struct {
	id       string
	endpoint string
	page     *page.Page
}

// cycle runs fn under the lock with a fresh cycle id. The endpoint is checked
// before anything else, and the cached PDF never outlives the cycle whatever
// its outcome.
func (s *Session) cycle(name string, fn func(r *run) error) (string, error) {
	id := uuid.NewString()

	endpoint := strings.TrimSpace(s.Endpoint())
	if endpoint == "" {
		log.Printf("workflow.Session: cycle %s: %s rejected, no API endpoint configured", id, name)
		return id, errors.NewConfigError("API endpoint not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cache.Invalidate()

	p, err := s.requirePage()
	if err != nil {
		return id, err
	}

	start := time.Now()
	log.Printf("workflow.Session: cycle %s: %s started", id, name)
	if err := fn(&run{id: id, endpoint: endpoint, page: p}); err != nil {
		log.Printf("workflow.Session: cycle %s: %s failed after %s: %v", id, name, since(start), err)
		return id, err
	}
	log.Printf("workflow.Session: cycle %s: %s completed in %s", id, name, since(start))
	return id, nil
}

func since(t time.Time) time.Duration {
	return time.Since(t).Round(time.Millisecond)
}

// loadPDF locates the page's PDF and returns its inspected bytes.
func (s *Session) loadPDF(ctx context.Context, r *run) (*locator.PdfSource, *page.File, *pdf.Inspection, error) {
	src, err := s.deps.Locator.Locate(ctx, r.page, s.cache)
	if err != nil {
		return nil, nil, nil, err
	}
	f, err := s.deps.Locator.Fetch(ctx, src)
	if err != nil {
		return nil, nil, nil, err
	}
	insp, err := s.deps.Validator.Validate(f.Name, f.Data)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Printf("workflow.Session: cycle %s: using %s (%d bytes, %d page(s))", r.id, src.Describe(), insp.Size, insp.PageCount)
	return src, f, insp, nil
}

func (s *Session) fillLocked(r *run, schema *form.Schema, values map[string]any) *Report {
	doc := r.page.Document()
	outcome := form.NewFiller(doc, doc.Scope(s.opts.FormID)).Fill(values)
	log.Printf("workflow.Session: cycle %s: %s", r.id, outcome.Message())
	return &Report{
		CycleID:  r.id,
		Fields:   schema.Len(),
		Values:   values,
		Outcome:  outcome,
		Message:  outcome.Message(),
		Severity: outcome.Severity(),
	}
}

// FillFromDocument locates the page's PDF, sends it with the form schema to
// the backend and fills the form with the extracted values.
func (s *Session) FillFromDocument(ctx context.Context) (*Report, error) {
	var report *Report
	_, err := s.cycle("fill from document", func(r *run) error {
		src, f, insp, err := s.loadPDF(ctx, r)
		if err != nil {
			return err
		}

		doc := r.page.Document()
		schema := s.extractor.Extract(doc, doc.Scope(s.opts.FormID))
		values, err := s.deps.Client.Submit(ctx, r.endpoint, schema, f.Data)
		if err != nil {
			return err
		}

		report = s.fillLocked(r, schema, values)
		report.Source = src.Describe()
		report.PDF = insp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ProcessByDocumentID asks the backend to extract values from a document it
// already stores and fills the form with them. An empty documentID is read
// from the page.
func (s *Session) ProcessByDocumentID(ctx context.Context, documentID string) (*Report, error) {
	var report *Report
	_, err := s.cycle("process document", func(r *run) error {
		id := strings.TrimSpace(documentID)
		if id == "" {
			found, err := locator.FindDocumentID(r.page)
			if err != nil {
				return err
			}
			id = found
		}

		doc := r.page.Document()
		schema := s.extractor.Extract(doc, doc.Scope(s.opts.FormID))
		values, err := s.deps.Client.ProcessDocument(ctx, r.endpoint, id, schema, doc.String())
		if err != nil {
			return err
		}

		report = s.fillLocked(r, schema, values)
		report.DocumentID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Summarize locates the page's PDF and asks the backend for a summary.
func (s *Session) Summarize(ctx context.Context) (*SummaryReport, error) {
	var report *SummaryReport
	_, err := s.cycle("summarize", func(r *run) error {
		src, f, insp, err := s.loadPDF(ctx, r)
		if err != nil {
			return err
		}
		summary, err := s.deps.Client.Summarize(ctx, r.endpoint, f.Data)
		if err != nil {
			return err
		}
		report = &SummaryReport{
			CycleID:        r.id,
			Source:         src.Describe(),
			PDF:            insp,
			Summary:        summary.Summary,
			PagesProcessed: summary.PagesProcessed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// UploadPDF stores the page's PDF on the backend and returns its document id.
func (s *Session) UploadPDF(ctx context.Context) (string, error) {
	var documentID string
	_, err := s.cycle("upload", func(r *run) error {
		_, f, _, err := s.loadPDF(ctx, r)
		if err != nil {
			return err
		}
		documentID, err = s.deps.Client.Upload(ctx, r.endpoint, f.Name, f.Data)
		return err
	})
	if err != nil {
		return "", err
	}
	return documentID, nil
}

// SearchDocuments lists documents stored on the backend.
func (s *Session) SearchDocuments(ctx context.Context, query string) ([]processor.SearchResult, error) {
	endpoint := s.Endpoint()
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.NewConfigError("API endpoint not configured")
	}
	return s.deps.Client.Search(ctx, endpoint, query)
}

// OpenDocument downloads a stored document and selects it in the file input
// named or identified by input, which counts as a new upload.
func (s *Session) OpenDocument(ctx context.Context, documentID, input string) (*pdf.Inspection, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, errors.NewNotFoundError("document id is required")
	}
	var insp *pdf.Inspection
	_, err := s.cycle("open document", func(r *run) error {
		data, err := s.deps.Client.FetchDocument(ctx, r.endpoint, documentID)
		if err != nil {
			return err
		}
		f := page.File{
			Name:        documentID + ".pdf",
			ContentType: page.PDFContentType,
			Data:        data,
		}
		if insp, err = s.deps.Validator.Validate(f.Name, f.Data); err != nil {
			return err
		}
		return s.attachLocked(input, f)
	})
	if err != nil {
		return nil, err
	}
	return insp, nil
}

// LocatePDF reports where the page's PDF would be taken from without
// consuming the cached file.
func (s *Session) LocatePDF(ctx context.Context) (*locator.PdfSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.requirePage()
	if err != nil {
		return nil, err
	}

	if _, ok := locator.FromFileInputs(p); !ok {
		if name, ok := s.cache.Peek(); ok {
			return &locator.PdfSource{
				Kind:   locator.SourceBytes,
				Origin: locator.OriginCache,
				File:   &page.File{Name: name, ContentType: page.PDFContentType},
			}, nil
		}
	}
	return s.deps.Locator.Locate(ctx, p, nil)
}

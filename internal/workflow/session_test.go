package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/a3tai/mcp-form-filler/internal/config"
	"github.com/a3tai/mcp-form-filler/internal/dom"
	"github.com/a3tai/mcp-form-filler/internal/errors"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/locator"
	"github.com/a3tai/mcp-form-filler/internal/page"
	"github.com/a3tai/mcp-form-filler/internal/pdf"
	"github.com/a3tai/mcp-form-filler/internal/processor"
)

var testPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

const officePage = `<html><body>
<form id="eofficeForm">
  <label for="subject" class="asterisk">Subject</label>
  <input type="text" id="subject" name="subject" value="old subject">
  <label for="pages">Pages</label>
  <input type="number" id="pages" name="pages">
  <label><input type="radio" name="receiptNature" value="E" checked>Electronic</label>
  <label><input type="radio" name="receiptNature" value="P">Physical</label>
  <input type="file" id="fileUpload" name="fileUpload">
</form>
<div id="documentIdDisplay">Document <span> DOC-42 </span></div>
%s
</body></html>`

// backend fakes the document processing service and a file host.
type backend struct {
	*httptest.Server
	apiHits atomic.Int64

	mu       sync.Mutex
	status   int
	process  string
	bodies   map[string]map[string]any
	uploaded []byte
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{
		status:  http.StatusOK,
		process: `{"success":true,"extracted_data_per_page":[{"subject":"Invoice 7"},{"pages":3,"receiptNature":"P"}]}`,
		bodies:  map[string]map[string]any{},
	}

	servePDF := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		if r.Method == http.MethodGet {
			_, _ = w.Write(testPDF)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/files/doc.pdf", servePDF)
	mux.HandleFunc("/storage/view/stored.pdf", servePDF)
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		b.apiHits.Add(1)
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.status != http.StatusOK {
			w.WriteHeader(b.status)
			_, _ = w.Write([]byte("backend exploded"))
			return
		}

		switch r.URL.Path {
		case "/api/upload":
			mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "multipart/form-data" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			part, err := multipart.NewReader(r.Body, params["boundary"]).NextPart()
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			b.uploaded, _ = io.ReadAll(part)
			_, _ = w.Write([]byte(`{"documentId":"DOC-99"}`))
			return
		case "/api/search":
			_, _ = fmt.Fprintf(w, `{"results":[{"id":"DOC-1","name":"%s","original_name":"a.pdf"}]}`, r.URL.Query().Get("query"))
			return
		case "/api/document":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(testPDF)
			return
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.bodies[r.URL.Path] = body

		switch r.URL.Path {
		case "/api/process-pdf":
			_, _ = w.Write([]byte(b.process))
		case "/api/summarize-direct":
			_, _ = w.Write([]byte(`{"success":true,"summary":"An invoice.","pages_processed":2}`))
		case "/api/process":
			_, _ = w.Write([]byte(`{"success":true,"extracted_data_per_page":{"subject":"From store"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *backend) endpoint() string {
	return b.URL + "/api/process-pdf"
}

func (b *backend) body(path string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[path]
}

func (b *backend) uploadedBytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uploaded
}

func (b *backend) fail(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

func newSession(t *testing.T, endpoint string, opts Options) *Session {
	t.Helper()
	store, err := config.NewEndpointStore(filepath.Join(t.TempDir(), "endpoint.json"), endpoint)
	require.NoError(t, err)

	if opts.FormID == "" {
		opts.FormID = "eofficeForm"
	}
	s := New(context.Background(), Deps{
		Locator:   locator.New(locator.Options{ProbeTimeout: 2 * time.Second, RequestTimeout: 5 * time.Second, MaxFileSize: 1 << 20}),
		Client:    processor.NewClient(5 * time.Second),
		Validator: pdf.NewValidator(1 << 20),
		Endpoints: store,
	}, opts)
	t.Cleanup(s.Close)
	return s
}

func loadOffice(t *testing.T, s *Session, extra string) *PageInfo {
	t.Helper()
	info, err := s.LoadPage(fmt.Sprintf(officePage, extra), "https://eoffice.example.gov/inward/new")
	require.NoError(t, err)
	return info
}

func controlValue(t *testing.T, s *Session, id string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.page.Document().GetElementByID(id)
	require.NotNil(t, n, "no element %q", id)
	return dom.Value(n)
}

func radioChecked(t *testing.T, s *Session, value string) bool {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := dom.First(s.page.Document().Root(), func(n *html.Node) bool {
		return dom.AttrOr(n, "name") == "receiptNature" && dom.AttrOr(n, "value") == value
	})
	require.NotNil(t, n)
	return dom.Checked(n)
}

func TestSession_RequiresPage(t *testing.T) {
	s := newSession(t, "", Options{})

	_, err := s.Schema()
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	_, err = s.Fill(map[string]any{"a": "b"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	_, err = s.HTML()
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.False(t, s.Status().PageLoaded)
}

func TestSession_LoadPage(t *testing.T) {
	s := newSession(t, "", Options{})

	info := loadOffice(t, s, `<iframe src="/files/doc.pdf"></iframe>`)

	assert.Equal(t, "https://eoffice.example.gov/inward/new", info.URL)
	assert.True(t, info.FormFound)
	assert.Equal(t, 5, info.Controls)
	assert.Equal(t, 1, info.FileInputs)
	assert.Equal(t, 1, info.Iframes)
	assert.False(t, info.Monitoring)

	schema, err := s.Schema()
	require.NoError(t, err)
	assert.Equal(t, []string{"subject", "pages", "receiptNature"}, schema.Keys())
	subject, _ := schema.Get("subject")
	assert.True(t, subject.Required)
}

func TestSession_FillAndReset(t *testing.T) {
	s := newSession(t, "", Options{})
	loadOffice(t, s, "")

	outcome, err := s.Fill(map[string]any{"subject": "Hello", "receiptNature": "P", "missing": "x"})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.FilledCount)
	assert.Equal(t, form.SeverityWarning, outcome.Severity())
	assert.Equal(t, "Hello", controlValue(t, s, "subject"))
	assert.True(t, radioChecked(t, s, "P"))

	n, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, controlValue(t, s, "subject"))
	assert.True(t, radioChecked(t, s, "E"), "radio group returns to its baseline")

	markup, err := s.HTML()
	require.NoError(t, err)
	assert.Contains(t, markup, `id="eofficeForm"`)
}

func TestSession_MissingEndpointFailsBeforeAnyTraffic(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, "", Options{})
	loadOffice(t, s, fmt.Sprintf(`<iframe src="%s/files/doc.pdf"></iframe>`, b.URL))

	_, err := s.FillFromDocument(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "API endpoint not configured")

	_, err = s.Summarize(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	_, err = s.ProcessByDocumentID(context.Background(), "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	assert.Zero(t, b.apiHits.Load())
	assert.Equal(t, "old subject", controlValue(t, s, "subject"))
}

func TestSession_FillFromIframe(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	viewer := fmt.Sprintf("%s/web/viewer.html?file=/files/doc.pdf", b.URL)
	loadOffice(t, s, fmt.Sprintf(`<iframe src="%s"></iframe>`, viewer))

	report, err := s.FillFromDocument(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.CycleID)
	assert.Equal(t, b.URL+"/files/doc.pdf", report.Source)
	require.NotNil(t, report.PDF)
	assert.Equal(t, "1.4", report.PDF.Version)
	assert.Equal(t, 3, report.Fields)
	assert.Equal(t, 3, report.Outcome.FilledCount)
	assert.Equal(t, form.SeveritySuccess, report.Severity)
	assert.Equal(t, "3 field(s) filled.", report.Message)

	assert.Equal(t, "Invoice 7", controlValue(t, s, "subject"))
	assert.Equal(t, "3", controlValue(t, s, "pages"))
	assert.True(t, radioChecked(t, s, "P"))
	assert.False(t, radioChecked(t, s, "E"))

	sent := b.body("/api/process-pdf")
	require.NotNil(t, sent)
	assert.Equal(t, processor.EncodePDF(testPDF), sent["pdfData"])
	schema, ok := sent["formSchema"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, schema, "subject")
	assert.Contains(t, schema, "receiptNature")
}

func TestSession_AttachedFileWinsAndResetsForm(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	loadOffice(t, s, `<iframe src="https://unreachable.invalid/doc.pdf"></iframe>`)

	insp, err := s.AttachPDF("fileUpload", page.File{Name: "scan.pdf", Data: testPDF})
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", insp.Name)
	assert.Empty(t, controlValue(t, s, "subject"), "a new upload resets the form")

	src, err := s.LocatePDF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, locator.OriginFileInput, src.Origin)

	report, err := s.FillFromDocument(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file scan.pdf", report.Source)
	assert.Equal(t, "Invoice 7", controlValue(t, s, "subject"))
}

func TestSession_AttachRejectsInvalidPDF(t *testing.T) {
	s := newSession(t, "", Options{})
	loadOffice(t, s, "")

	_, err := s.AttachPDF("fileUpload", page.File{Name: "notes.pdf", Data: []byte("plain text")})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = s.AttachPDF("nope", page.File{Name: "scan.pdf", Data: testPDF})
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Equal(t, "old subject", controlValue(t, s, "subject"))
}

func TestSession_CacheClearedAfterEveryCycle(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	loadOffice(t, s, "")

	_, err := s.AttachPDF("", page.File{Name: "scan.pdf", Data: testPDF})
	require.NoError(t, err)

	d, err := s.Detect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, locator.OriginFileInput, d.Source.Origin)
	assert.Equal(t, "scan.pdf", s.Status().CachedFile)

	b.fail(http.StatusInternalServerError)
	_, err = s.FillFromDocument(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeHTTP))
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "backend exploded")
	assert.Empty(t, s.Status().CachedFile, "a failed cycle drops the cached PDF")

	b.fail(http.StatusOK)
	_, err = s.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Status().CachedFile, "a detected file is cached only once per upload")

	require.NoError(t, s.HandleUpload())
	_, err = s.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", s.Status().CachedFile)

	_, err = s.FillFromDocument(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.Status().CachedFile, "a successful cycle drops the cached PDF")
}

func TestSession_NoSourceIsNotFound(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	loadOffice(t, s, "")

	_, err := s.FillFromDocument(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Zero(t, b.apiHits.Load())
}

func TestSession_ProcessByDocumentID(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	loadOffice(t, s, "")

	report, err := s.ProcessByDocumentID(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "DOC-42", report.DocumentID)
	assert.Equal(t, 1, report.Outcome.FilledCount)
	assert.Equal(t, "From store", controlValue(t, s, "subject"))

	sent := b.body("/api/process")
	require.NotNil(t, sent)
	assert.Equal(t, "DOC-42", sent["documentId"])
	assert.Contains(t, sent["pageHTML"], "documentIdDisplay")
	assert.Contains(t, sent, "form_schema")

	report, err = s.ProcessByDocumentID(context.Background(), "DOC-7")
	require.NoError(t, err)
	assert.Equal(t, "DOC-7", report.DocumentID)
}

func TestSession_ProcessByDocumentIDWithoutDisplay(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	_, err := s.LoadPage(`<form id="eofficeForm"><input name="subject"></form>`, "")
	require.NoError(t, err)

	_, err = s.ProcessByDocumentID(context.Background(), "  ")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Zero(t, b.apiHits.Load())
}

func TestSession_Summarize(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	loadOffice(t, s, "")
	_, err := s.AttachPDF("fileUpload", page.File{Name: "scan.pdf", Data: testPDF})
	require.NoError(t, err)

	report, err := s.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "An invoice.", report.Summary)
	assert.Equal(t, 2, report.PagesProcessed)
	assert.Equal(t, "file scan.pdf", report.Source)

	sent := b.body("/api/summarize-direct")
	require.NotNil(t, sent)
	assert.Equal(t, map[string]any{}, sent["formSchema"])
}

func TestSession_UploadSearchOpen(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	loadOffice(t, s, "")

	_, err := s.AttachPDF("fileUpload", page.File{Name: "scan.pdf", Data: testPDF})
	require.NoError(t, err)
	id, err := s.UploadPDF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DOC-99", id)
	assert.Equal(t, testPDF, b.uploadedBytes())

	results, err := s.SearchDocuments(context.Background(), "invoice")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "invoice", results[0].Name)

	_, err = s.Fill(map[string]any{"subject": "typed"})
	require.NoError(t, err)
	insp, err := s.OpenDocument(context.Background(), "DOC-1", "fileUpload")
	require.NoError(t, err)
	assert.Equal(t, "DOC-1.pdf", insp.Name)
	assert.Empty(t, controlValue(t, s, "subject"), "opening a document counts as an upload")

	src, err := s.LocatePDF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DOC-1.pdf", src.File.Name)

	_, err = s.OpenDocument(context.Background(), "", "fileUpload")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestSession_ViewerChangeResetsForm(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{})
	loadOffice(t, s, `<iframe data-id-attr="iFrame-id" src=""></iframe>`)

	d, err := s.Detect(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, "old subject", controlValue(t, s, "subject"))

	require.NoError(t, s.SetViewer(b.URL+"/storage/view/stored.pdf"))
	d, err = s.Detect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, locator.OriginIframe, d.Source.Origin)
	assert.Empty(t, controlValue(t, s, "subject"))

	st := s.Status()
	assert.True(t, st.Detected)
	require.NotNil(t, st.LastDetection)
	assert.Equal(t, b.URL+"/storage/view/stored.pdf", st.LastDetection.Source.URL)
}

func TestSession_SetViewerWithoutMarker(t *testing.T) {
	s := newSession(t, "", Options{})
	loadOffice(t, s, "")

	err := s.SetViewer("https://host/storage/view/1")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestSession_MonitorDetectsInBackground(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{
		Monitor:      true,
		PollInterval: 20 * time.Millisecond,
		InitialDelay: 10 * time.Millisecond,
	})
	info := loadOffice(t, s, fmt.Sprintf(`<iframe src="%s/files/doc.pdf"></iframe>`, b.URL))
	assert.True(t, info.Monitoring)

	assert.Eventually(t, func() bool {
		return s.Status().Detected
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return controlValue(t, s, "subject") == ""
	}, time.Second, 10*time.Millisecond, "a detection resets the form")

	// loading another page stops the previous monitor and drops its state
	loadOffice(t, s, "")
	st := s.Status()
	assert.Nil(t, st.LastDetection)
	assert.Zero(t, st.ProbedFrames)
}

func TestSession_ConcurrentLoadsLeaveOneMonitor(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b.endpoint(), Options{
		Monitor:      true,
		PollInterval: 5 * time.Millisecond,
		InitialDelay: time.Millisecond,
	})
	withViewer := fmt.Sprintf(officePage, fmt.Sprintf(`<iframe src="%s/files/doc.pdf"></iframe>`, b.URL))

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.LoadPage(withViewer, "https://eoffice.example.gov/inward/new")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
	}

	// the page without a viewer must never report a detection from a replaced page
	loadOffice(t, s, "")
	assert.Never(t, func() bool {
		st := s.Status()
		return st.Detected || st.LastDetection != nil
	}, 300*time.Millisecond, 10*time.Millisecond)
}

func TestSession_SetEndpoint(t *testing.T) {
	s := newSession(t, "", Options{})

	assert.True(t, errors.IsType(s.SetEndpoint("nope"), errors.ErrorTypeConfig))
	require.NoError(t, s.SetEndpoint("https://api.example.com/process-pdf"))
	assert.Equal(t, "https://api.example.com/process-pdf", s.Endpoint())
	assert.Equal(t, "https://api.example.com/process-pdf", s.Status().Endpoint)
}

func TestSession_CyclesAreSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte(`{"subject":"x"}`))
	}))
	t.Cleanup(srv.Close)

	s := newSession(t, srv.URL+"/process-pdf", Options{})
	loadOffice(t, s, "")
	_, err := s.AttachPDF("fileUpload", page.File{Name: "scan.pdf", Data: testPDF})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.FillFromDocument(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), maxInFlight.Load())
	assert.True(t, strings.HasPrefix(controlValue(t, s, "subject"), "x"))
}

func TestSession_AttachPDFFile(t *testing.T) {
	s := newSession(t, "", Options{})
	loadOffice(t, s, "")

	path := filepath.Join(t.TempDir(), "inward.pdf")
	require.NoError(t, os.WriteFile(path, testPDF, 0o600))

	insp, err := s.AttachPDFFile("", path)
	require.NoError(t, err)
	assert.Equal(t, "inward.pdf", insp.Name)

	src, err := s.LocatePDF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "file inward.pdf", src.Describe())

	_, err = s.AttachPDFFile("", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

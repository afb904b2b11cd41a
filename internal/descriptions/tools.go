package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	// Page tools
	PageLoadDescription = `Load an HTML page into the tab so its form can be read and filled.

**When to use:** Start of every session, or whenever the host page navigates. Loading a page stops PDF detection for the previous page and starts it for the new one.

**Examples:**
• Load a saved page: path "/tmp/eoffice-form.html", url "https://office.example/forms/new"
• Load markup captured by a browser extension: html "<html>...</html>"

**Common workflows:**
1. Page Setup: page_load → form_extract_schema → form_process
2. Navigation: page_load (new page) → session_status to confirm detection restarted

**Best practices:** Always pass the url the page was served from, relative iframe sources and viewer links are resolved against it.`

	PageAttachPDFDescription = `Select a PDF file in a file input of the page, as a user upload would.

**When to use:** The PDF lives on disk and the page has a file input for it.

**Why it's useful:** An attached file is the first place the processing cycles look for the PDF. Attaching counts as a new upload, so the form is reset and detection starts over.

**Best practices:** Name the input when the page has more than one file input.`

	PageHTMLDescription = `Return the current markup of the page, including every filled value, checked box and selected option.`

	PageSetViewerDescription = `Point the page's marker viewer iframe at a new source. The host page does this once an upload is stored; a change to a storage view URL resets the form for the new document.`

	SessionStatusDescription = `Show the loaded page, the configured endpoint, the cached file and the PDF detection state as JSON.`

	// Form tools
	FormExtractSchemaDescription = `Extract the field schema of the form as JSON.

**When to use:** Before filling by hand, or to see what the backend will receive with the PDF.

**What you get:** One entry per logical field keyed by name or id, with kind (text, select, radio, checkbox, ...), label, required flag, options for choice fields, bounds for dates and numbers, and the current value.

**Examples:**
• Inspect the form: "What fields does the loaded form have and which are mandatory?"
• Prepare values: read option values of a select before calling form_fill

**Best practices:** Use the keys and option values exactly as reported, form_fill matches option values loosely but keys strictly.`

	FormFillDescription = `Fill the form from a map of field keys to values.

**When to use:** You already have the values, for example from your own reading of a document.

**How values are matched:** text-like inputs take the value as text; dates are normalized to YYYY-MM-DD; selects and radios pick the option whose value or label matches; checkboxes take true/false, or a list of member values for a checkbox group.

**Examples:**
• values {"subject": "Road repair tender", "receiptNature": "E", "pages": 12}

**Best practices:** Check the reply. A warning lists keys with no field and values that matched no option, an error lists values a field rejected.`

	FormResetDescription = `Reset the form to its baseline state: text cleared, selects back to their first option, checkboxes cleared, radios back to their baseline.`

	// PDF tools
	PDFLocateDescription = `Report where the page's PDF would be taken from, in priority order: a file input, the cached upload, then the viewer iframes. Nothing is downloaded or consumed.`

	PDFDetectDescription = `Run one PDF detection pass now instead of waiting for the next poll.`

	PDFSummarizeDescription = `Send the page's PDF to the backend and return its summary.

**When to use:** To preview a document before filling, or when only a summary is needed.

**Common workflows:**
1. Triage: pdf_locate → pdf_summarize → decide whether to form_process`

	PDFUploadDescription = `Store the page's PDF on the backend and return its document id.`

	// Processing tools
	FormProcessDescription = `Send the page's PDF and the form schema to the backend and fill the form with the values it extracts.

**When to use:** The main workflow. The PDF is found the same way pdf_locate reports it.

**Why it's useful:** One call does the whole cycle: locate, validate, submit, normalize the backend's per-page answers and fill.

**Examples:**
• "Fill the tender form from the PDF the user just uploaded"

**Common workflows:**
1. Upload then fill: page_attach_pdf → form_process
2. Viewer page: page_load (page with viewer iframe) → form_process

**Best practices:** Set the endpoint first with endpoint_set. The reply lists fields that could not be filled, fill those with form_fill.`

	FormProcessDocumentDescription = `Fill the form from a document already stored on the backend.

**When to use:** The page shows a document id (the document id display) or you know it from document_search.

**Best practices:** Leave document_id empty to read it from the page.`

	DocumentSearchDescription = `Search documents stored on the backend by name.`

	DocumentOpenDescription = `Download a stored document and select it in a file input of the page, so the next cycle uses it.`

	EndpointSetDescription = `Save the document processing API endpoint, the absolute http(s) URL of the processing route (for example http://127.0.0.1:8000/api/process-pdf). The other backend routes are derived from it.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"page_load":             PageLoadDescription,
	"page_attach_pdf":       PageAttachPDFDescription,
	"page_html":             PageHTMLDescription,
	"page_set_viewer":       PageSetViewerDescription,
	"session_status":        SessionStatusDescription,
	"form_extract_schema":   FormExtractSchemaDescription,
	"form_fill":             FormFillDescription,
	"form_reset":            FormResetDescription,
	"pdf_locate":            PDFLocateDescription,
	"pdf_detect":            PDFDetectDescription,
	"pdf_summarize":         PDFSummarizeDescription,
	"pdf_upload":            PDFUploadDescription,
	"form_process":          FormProcessDescription,
	"form_process_document": FormProcessDocumentDescription,
	"document_search":       DocumentSearchDescription,
	"document_open":         DocumentOpenDescription,
	"endpoint_set":          EndpointSetDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the sorted names of all described tools
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

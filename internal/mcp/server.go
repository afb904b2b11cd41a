package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-form-filler/internal/config"
	"github.com/a3tai/mcp-form-filler/internal/descriptions"
	"github.com/a3tai/mcp-form-filler/internal/form"
	"github.com/a3tai/mcp-form-filler/internal/workflow"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	session   *workflow.Session
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, session *workflow.Session) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		session:   session,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// Page tools
	s.mcpServer.AddTool(mcp.NewTool(
		"page_load",
		mcp.WithDescription(descriptions.GetToolDescription("page_load")),
		mcp.WithString("html", mcp.Description("Page markup")),
		mcp.WithString("path", mcp.Description("Path of an HTML file to load instead of markup")),
		mcp.WithString("url", mcp.Description("URL the page was served from, used to resolve relative iframe sources")),
	), s.handlePageLoad)

	s.mcpServer.AddTool(mcp.NewTool(
		"page_attach_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("page_attach_pdf")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Full path to the PDF file")),
		mcp.WithString("input", mcp.Description("Name or id of the file input (first file input if empty)")),
	), s.handlePageAttachPDF)

	s.mcpServer.AddTool(mcp.NewTool(
		"page_html",
		mcp.WithDescription(descriptions.GetToolDescription("page_html")),
	), s.handlePageHTML)

	s.mcpServer.AddTool(mcp.NewTool(
		"page_set_viewer",
		mcp.WithDescription(descriptions.GetToolDescription("page_set_viewer")),
		mcp.WithString("src", mcp.Required(), mcp.Description("New iframe src")),
	), s.handlePageSetViewer)

	s.mcpServer.AddTool(mcp.NewTool(
		"session_status",
		mcp.WithDescription(descriptions.GetToolDescription("session_status")),
	), s.handleSessionStatus)

	// Form tools
	s.mcpServer.AddTool(mcp.NewTool(
		"form_extract_schema",
		mcp.WithDescription(descriptions.GetToolDescription("form_extract_schema")),
	), s.handleFormExtractSchema)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_fill",
		mcp.WithDescription(descriptions.GetToolDescription("form_fill")),
		mcp.WithObject("values", mcp.Required(), mcp.Description("Field key to value map")),
	), s.handleFormFill)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_reset",
		mcp.WithDescription(descriptions.GetToolDescription("form_reset")),
	), s.handleFormReset)

	// PDF tools
	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_locate",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_locate")),
	), s.handlePDFLocate)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_detect",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_detect")),
	), s.handlePDFDetect)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_summarize",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_summarize")),
	), s.handlePDFSummarize)

	s.mcpServer.AddTool(mcp.NewTool(
		"pdf_upload",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_upload")),
	), s.handlePDFUpload)

	// Processing tools
	s.mcpServer.AddTool(mcp.NewTool(
		"form_process",
		mcp.WithDescription(descriptions.GetToolDescription("form_process")),
	), s.handleFormProcess)

	s.mcpServer.AddTool(mcp.NewTool(
		"form_process_document",
		mcp.WithDescription(descriptions.GetToolDescription("form_process_document")),
		mcp.WithString("document_id", mcp.Description("Document id (read from the page if empty)")),
	), s.handleFormProcessDocument)

	s.mcpServer.AddTool(mcp.NewTool(
		"document_search",
		mcp.WithDescription(descriptions.GetToolDescription("document_search")),
		mcp.WithString("query", mcp.Description("Search query")),
	), s.handleDocumentSearch)

	s.mcpServer.AddTool(mcp.NewTool(
		"document_open",
		mcp.WithDescription(descriptions.GetToolDescription("document_open")),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("input", mcp.Description("Name or id of the file input (first file input if empty)")),
	), s.handleDocumentOpen)

	s.mcpServer.AddTool(mcp.NewTool(
		"endpoint_set",
		mcp.WithDescription(descriptions.GetToolDescription("endpoint_set")),
		mcp.WithString("endpoint", mcp.Required(), mcp.Description("Absolute http(s) URL of the processing route")),
	), s.handleEndpointSet)
}

// Handler functions
func (s *Server) handlePageLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	markup := stringArg(args, "html")
	path := stringArg(args, "path")

	if markup == "" && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cannot read page: %v", err)), nil
		}
		markup = string(data)
	}
	if markup == "" {
		return mcp.NewToolResultError("either html or path is required"), nil
	}

	info, err := s.session.LoadPage(markup, stringArg(args, "url"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := "Page loaded\n"
	if info.URL != "" {
		text += fmt.Sprintf("URL: %s\n", info.URL)
	}
	if info.FormFound {
		text += fmt.Sprintf("Form: #%s\n", s.config.FormID)
	} else {
		text += fmt.Sprintf("Form: #%s not found, using the whole page\n", s.config.FormID)
	}
	text += fmt.Sprintf("Controls: %d\n", info.Controls)
	text += fmt.Sprintf("File inputs: %d\n", info.FileInputs)
	text += fmt.Sprintf("Viewer iframes: %d\n", info.Iframes)
	text += fmt.Sprintf("PDF detection: %s\n", onOff(info.Monitoring))
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePageAttachPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	insp, err := s.session.AttachPDFFile(stringArg(request.GetArguments(), "input"), path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Attached %s (%d bytes)\n", insp.Name, insp.Size)
	if insp.Version != "" {
		text += fmt.Sprintf("PDF version: %s\n", insp.Version)
	}
	if insp.PageCount > 0 {
		text += fmt.Sprintf("Pages: %d\n", insp.PageCount)
	}
	text += "The form was reset for the new upload.\n"
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePageHTML(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markup, err := s.session.HTML()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(markup), nil
}

func (s *Server) handlePageSetViewer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := request.RequireString("src")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.session.SetViewer(src); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Viewer iframe now shows %s", src)), nil
}

func (s *Server) handleSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.session.Status())
}

func (s *Server) handleFormExtractSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schema, err := s.session.Schema()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(schema)
}

func (s *Server) handleFormFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	values, err := valuesArg(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := s.session.Fill(values)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatOutcome(outcome)), nil
}

func (s *Server) handleFormReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := s.session.Reset()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reset %d control(s)", n)), nil
}

func (s *Server) handlePDFLocate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := s.session.LocatePDF(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("PDF source: %s\n", src.Describe())
	text += fmt.Sprintf("Kind: %s\n", src.Kind)
	text += fmt.Sprintf("Origin: %s\n", src.Origin)
	if src.Frame != "" && src.Frame != src.URL {
		text += fmt.Sprintf("Viewer: %s\n", src.Frame)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePDFDetect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := s.session.Detect(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if d == nil {
		return mcp.NewToolResultText("No new PDF detected"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Detected %s (%s)", d.Source.Describe(), d.Source.Origin)), nil
}

func (s *Server) handlePDFSummarize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.session.Summarize(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Summary of %s\n", report.Source)
	text += fmt.Sprintf("Pages processed: %d\n", report.PagesProcessed)
	text += fmt.Sprintf("Cycle: %s\n\n", report.CycleID)
	text += report.Summary
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handlePDFUpload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.session.UploadPDF(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Uploaded, document id: %s", id)), nil
}

func (s *Server) handleFormProcess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.session.FillFromDocument(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatReport(report)), nil
}

func (s *Server) handleFormProcessDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.session.ProcessByDocumentID(ctx, stringArg(request.GetArguments(), "document_id"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(s.formatReport(report)), nil
}

func (s *Server) handleDocumentSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := stringArg(request.GetArguments(), "query")
	results, err := s.session.SearchDocuments(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No documents found for %q", query)), nil
	}

	text := fmt.Sprintf("Found %d document(s)\n", len(results))
	for i, r := range results {
		text += fmt.Sprintf("%d. %s (id: %s)", i+1, r.Name, r.ID)
		if r.OriginalName != "" && r.OriginalName != r.Name {
			text += fmt.Sprintf(", uploaded as %s", r.OriginalName)
		}
		text += "\n"
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleDocumentOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	insp, err := s.session.OpenDocument(ctx, id, stringArg(request.GetArguments(), "input"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Opened %s (%d bytes)", insp.Name, insp.Size)), nil
}

func (s *Server) handleEndpointSet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	endpoint, err := request.RequireString("endpoint")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.session.SetEndpoint(endpoint); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("API endpoint saved: %s", s.session.Endpoint())), nil
}

// Formatting methods
func (s *Server) formatOutcome(o *form.FillOutcome) string {
	text := fmt.Sprintf("[%s] %s\n", strings.ToUpper(o.Severity()), o.Message())
	return text
}

func (s *Server) formatReport(r *workflow.Report) string {
	text := s.formatOutcome(r.Outcome)
	text += fmt.Sprintf("Cycle: %s\n", r.CycleID)
	if r.Source != "" {
		text += fmt.Sprintf("Source: %s\n", r.Source)
	}
	if r.DocumentID != "" {
		text += fmt.Sprintf("Document id: %s\n", r.DocumentID)
	}
	if r.PDF != nil && r.PDF.PageCount > 0 {
		text += fmt.Sprintf("PDF pages: %d\n", r.PDF.PageCount)
	}
	text += fmt.Sprintf("Schema fields: %d\n", r.Fields)
	text += fmt.Sprintf("Values received: %d\n", len(r.Values))
	return text
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// valuesArg accepts the values map as an object or as a JSON string, since
// some clients serialize nested arguments.
func valuesArg(args map[string]any) (map[string]any, error) {
	switch v := args["values"].(type) {
	case map[string]any:
		return v, nil
	case string:
		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()
		var values map[string]any
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("values must be a JSON object: %w", err)
		}
		return values, nil
	case nil:
		return nil, fmt.Errorf("required argument \"values\" not found")
	default:
		return nil, fmt.Errorf("values must be an object, got %T", v)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Run serves MCP over stdin and stdout until ctx is done or stdin closes.
func (s *Server) Run(ctx context.Context) error {
	return s.serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if s.config.IsDebug() {
		log.Printf("Starting form filler MCP server in stdio mode")
		log.Printf("Form: #%s, endpoint: %q", s.config.FormID, s.session.Endpoint())
	}

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(log.New(log.Writer(), "mcp: ", log.LstdFlags))
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-filler/internal/dom"
)

const uploadHTML = `<html><body>
<input type="file" id="fileUpload" name="doc">
<input type="file" id="other">
</body></html>`

func TestFile_IsPDF(t *testing.T) {
	tests := []struct {
		name string
		file File
		want bool
	}{
		{"mime_type", File{Name: "scan", ContentType: PDFContentType}, true},
		{"extension", File{Name: "Letter.PDF"}, true},
		{"neither", File{Name: "notes.txt", ContentType: "text/plain"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.file.IsPDF())
		})
	}
}

func TestPage_AttachFile(t *testing.T) {
	p, err := Load(uploadHTML, "https://example.com/app/form")
	require.NoError(t, err)

	var changed []string
	p.Document().AddListener(func(ev dom.Event) {
		changed = append(changed, ev.Type+":"+dom.AttrOr(ev.Target, "id"))
	})

	require.NoError(t, p.AttachFile("doc", File{Name: "a.pdf", Data: []byte("%PDF-1.4")}))
	require.NoError(t, p.AttachFile("other", File{Name: "b.txt"}))
	assert.Error(t, p.AttachFile("missing", File{Name: "c.pdf"}))
	assert.Error(t, p.AttachFile("doc", File{}))

	inputs := p.FileInputs()
	require.Len(t, inputs, 2)
	files := p.Files(inputs[0])
	require.Len(t, files, 1)
	assert.Equal(t, PDFContentType, files[0].ContentType)
	assert.Equal(t, []string{"change:fileUpload", "change:other"}, changed)

	p.ClearFiles()
	assert.Empty(t, p.Files(inputs[0]))
}

func TestPage_Resolve(t *testing.T) {
	p, err := Load(uploadHTML, "https://example.com/app/form")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/app/docs/a.pdf", p.Resolve("docs/a.pdf"))

	bare, err := Load(uploadHTML, "")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.pdf", bare.Resolve("docs/a.pdf"))
	assert.Nil(t, bare.URL())
}

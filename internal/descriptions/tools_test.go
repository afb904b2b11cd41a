package descriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetToolDescription(t *testing.T) {
	tests := []struct {
		name string
		tool string
		want string
	}{
		{name: "known tool", tool: "form_fill", want: FormFillDescription},
		{name: "endpoint", tool: "endpoint_set", want: EndpointSetDescription},
		{name: "unknown tool", tool: "pdf_read_file", want: "Tool description not available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetToolDescription(tt.tool))
		})
	}
}

func TestGetAllToolNames(t *testing.T) {
	names := GetAllToolNames()
	assert.Len(t, names, len(ToolDescriptions))
	assert.IsIncreasing(t, names)
	for _, name := range names {
		assert.NotEmpty(t, ToolDescriptions[name], name)
	}
}

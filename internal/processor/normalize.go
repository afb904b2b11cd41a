package processor

import (
	"bytes"
	"encoding/json"
	"log"

	"github.com/a3tai/mcp-form-filler/internal/errors"
)

// PagesKey holds per-page results in a processing response.
const PagesKey = "extracted_data_per_page"

// envelopeKeys are response metadata, never field values, in flat responses.
var envelopeKeys = map[string]bool{
	"message":                true,
	"success":                true,
	"pages_processed":        true,
	"successful_pages":       true,
	"fields_extracted":       true,
	"temp_id":                true,
	"processing_method":      true,
	"documentId":             true,
	"num_of_pages_processed": true,
}

// Normalize turns a processing response into one flat field to value map.
// Accepted shapes are a list of per-page maps, an object carrying the pages
// under extracted_data_per_page (a list or a single map) and a flat object.
// Pages merge in order so later pages overwrite earlier ones. Pages that
// only report an error are dropped. Numbers are kept as json.Number.
func Normalize(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.NewFormatError(err, "unmarshaling process response")
	}

	switch v := raw.(type) {
	case []any:
		return mergePages(v)
	case map[string]any:
		if ok, isBool := v["success"].(bool); isBool && !ok {
			msg, _ := v["message"].(string)
			return nil, errors.NewBackendError(msg)
		}
		pages, hasPages := v[PagesKey]
		if !hasPages {
			out := make(map[string]any, len(v))
			for k, val := range v {
				if !envelopeKeys[k] {
					out[k] = val
				}
			}
			return out, nil
		}
		switch p := pages.(type) {
		case []any:
			return mergePages(p)
		case map[string]any:
			return mergePages([]any{p})
		case nil:
			return map[string]any{}, nil
		default:
			return nil, errors.NewFormatError(nil, "%s is a %T, want a list or an object", PagesKey, pages)
		}
	default:
		return nil, errors.NewFormatError(nil, "unexpected response of type %T", raw)
	}
}

func mergePages(pages []any) (map[string]any, error) {
	out := make(map[string]any)
	for i, p := range pages {
		if p == nil {
			continue
		}
		m, ok := p.(map[string]any)
		if !ok {
			return nil, errors.NewFormatError(nil, "page %d is a %T, want an object", i+1, p)
		}
		if isErrorPage(m) {
			log.Printf("processor.Normalize: skipping page %d: %v", i+1, m["error"])
			continue
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

// isErrorPage reports whether m is a failed-page marker {"error", "details"}.
func isErrorPage(m map[string]any) bool {
	if _, ok := m["error"]; !ok {
		return false
	}
	for k := range m {
		if k != "error" && k != "details" {
			return false
		}
	}
	return true
}

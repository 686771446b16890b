package server

import (
	"github.com/joseph-ayodele/classdocs/constants"
)

// SubmitSchema returns the JSON-Schema of a Submit request document. It
// checks shape only; batch rules are enforced at admission.
func SubmitSchema() map[string]any {
	image := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":      map[string]any{"type": "string"},
			"mime_type": map[string]any{"type": "string"},
			"data":      map[string]any{"type": "string"},
		},
		"required": []string{"data"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"target_format": map[string]any{"type": "string"},
			"destination":   map[string]any{"type": "string"},
			"title":         map[string]any{"type": "string"},
			"images": map[string]any{
				"type":     "array",
				"maxItems": constants.MaxBatch * 2, // oversized batches still get the admission message
				"items":    image,
			},
		},
	}
}

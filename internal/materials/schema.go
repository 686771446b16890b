package materials

// RegisterResponseSchema returns the JSON-Schema a material registry
// response must satisfy.
func RegisterResponseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":          map[string]any{"type": "string", "minLength": 1},
			"destination": map[string]any{"type": "string"},
			"status":      map[string]any{"type": "string"},
		},
		"required": []string{"id"},
	}
}

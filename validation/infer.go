package validation

// InferSchema builds a JSON-schema map from a sample output, mirroring
// schema_validator.py's infer_schema helper: useful for operators
// bootstrapping a new agent's output_schema from one real response. Not
// wired into the mandatory validation path — callers opt in explicitly.
func InferSchema(sample map[string]any) map[string]any {
	properties := make(map[string]any, len(sample))
	required := make([]string, 0, len(sample))
	for k, v := range sample {
		properties[k] = inferType(v)
		required = append(required, k)
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func inferType(v any) map[string]any {
	switch x := v.(type) {
	case string:
		return map[string]any{"type": "string"}
	case bool:
		return map[string]any{"type": "boolean"}
	case float64, float32, int, int64:
		return map[string]any{"type": "number"}
	case []any:
		item := map[string]any{}
		if len(x) > 0 {
			item = inferType(x[0])
		}
		return map[string]any{"type": "array", "items": item}
	case map[string]any:
		return InferSchema(x)
	case nil:
		return map[string]any{"type": "null"}
	default:
		return map[string]any{}
	}
}

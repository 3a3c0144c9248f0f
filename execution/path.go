package execution

import (
	"fmt"
	"strings"
)

// ExtractPath walks a JSON-pointer-like path (e.g. "results[*].title") into
// data, which is expected to be the map[string]any produced by an agent
// invocation. A "[*]" suffix on a path segment maps the remainder of the
// path over every element of the array found at that segment, collecting
// the results into a slice — this is how one step's output list feeds a
// named parameter on a dependent step.
func ExtractPath(data any, path string) (any, error) {
	if path == "" {
		return data, nil
	}
	return resolvePath(data, strings.Split(path, "."))
}

func resolvePath(data any, tokens []string) (any, error) {
	if len(tokens) == 0 {
		return data, nil
	}
	tok := tokens[0]
	rest := tokens[1:]
	wildcard := strings.HasSuffix(tok, "[*]")
	key := strings.TrimSuffix(tok, "[*]")

	m, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("execution: path segment %q expects an object, got %T", tok, data)
	}
	val, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("execution: path segment %q not found", key)
	}

	if !wildcard {
		return resolvePath(val, rest)
	}

	arr, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("execution: path segment %q expects an array, got %T", tok, val)
	}
	out := make([]any, 0, len(arr))
	for _, item := range arr {
		v, err := resolvePath(item, rest)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

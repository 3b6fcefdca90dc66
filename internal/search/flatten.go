package search

// Flatten aplana mapas anidados con claves separadas por punto:
// {"data":{"theme":"x"}} => {"data.theme":"x"}. Slices y escalares quedan igual.
func Flatten(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	flattenInto(out, "", in)
	return out
}

func flattenInto(out map[string]any, prefix string, in map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = v
	}
}

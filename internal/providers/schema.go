package providers

// CleanToolSchemas converts tool definitions to OpenAI-compatible wire
// format, cleaning each parameter schema for the target provider along the
// way (some OpenAI-compatible backends reject JSON Schema keywords the
// Anthropic/OpenAI spec writers added but strict validators don't expect).
func CleanToolSchemas(provider string, tools []ToolDefinition) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Function.Name,
				"description": t.Function.Description,
				"parameters":  CleanSchemaForProvider(provider, t.Function.Parameters),
			},
		})
	}
	return out
}

// unsupportedSchemaKeys lists JSON Schema keywords that some providers
// (notably Anthropic's and Gemini's tool-schema validators) reject outright.
var unsupportedSchemaKeys = map[string]bool{
	"$schema":              true,
	"$id":                  true,
	"title":                true,
	"examples":             true,
	"additionalProperties": true,
}

// CleanSchemaForProvider returns a deep copy of schema with keys that
// provider's tool-calling API doesn't accept stripped out, recursing into
// nested "properties"/"items"/"anyOf" members.
func CleanSchemaForProvider(provider string, schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	out := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		if unsupportedSchemaKeys[k] {
			continue
		}
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = CleanSchemaForProvider(provider, val)
		case []interface{}:
			out[k] = cleanSchemaList(provider, val)
		default:
			out[k] = v
		}
	}
	return out
}

func cleanSchemaList(provider string, items []interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out[i] = CleanSchemaForProvider(provider, m)
		} else {
			out[i] = item
		}
	}
	return out
}

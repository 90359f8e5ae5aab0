package recommender

import (
	"encoding/json"
	"regexp"
	"strings"
)

var separatorRe = regexp.MustCompile(`[\\_-]`)

// NormalizeInput prepares free-form user text for the validation and
// structuring endpoints: backslashes, underscores and hyphens are
// stripped and the text is lowercased. Analysis input is sent verbatim
// and must not go through this.
func NormalizeInput(input string) string {
	return strings.ToLower(separatorRe.ReplaceAllString(input, ""))
}

var keySepRe = regexp.MustCompile(`[-_][a-z]`)

func camelKey(k string) string {
	return keySepRe.ReplaceAllStringFunc(k, func(m string) string {
		return strings.ToUpper(m[1:])
	})
}

// camelizeKeys recursively rewrites snake_case and kebab-case object
// keys to camelCase. Arrays are walked element by element; scalars pass
// through untouched.
func camelizeKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[camelKey(k)] = camelizeKeys(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = camelizeKeys(inner)
		}
		return out
	default:
		return v
	}
}

// decodeCamel unmarshals a response body after normalizing every object
// key to camelCase, so upstream services are free to answer in either
// convention.
func decodeCamel(data []byte, target interface{}) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	normalized, err := json.Marshal(camelizeKeys(raw))
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, target)
}

// Package requirements contains the pure merge logic that combines
// user-provided requirement fields with product-type schemas.
package requirements

import (
	"fmt"
	"sort"
	"strings"

	"instrument-advisor-be/pkg/store"
)

// Compose renders collected requirement data as a single descriptive
// sentence list suitable for re-validation or analysis prompts.
// productType always leads when present; remaining keys are emitted in
// sorted order so output is stable.
func Compose(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}
	parts := make([]string, 0, len(data))
	if pt, ok := data["productType"]; ok {
		if s := valueString(pt); s != "" {
			parts = append(parts, fmt.Sprintf("Product Type: %s", s))
		}
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		if k == "productType" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := valueString(data[k])
		if s == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, s))
	}
	return strings.Join(parts, ". ")
}

func valueString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sub := make([]string, 0, len(keys))
		for _, k := range keys {
			s := valueString(val[k])
			if s == "" {
				continue
			}
			sub = append(sub, fmt.Sprintf("%s: %s", k, s))
		}
		return strings.Join(sub, ". ")
	case []string:
		return strings.Join(val, ", ")
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, it := range val {
			if s := valueString(it); s != "" {
				items = append(items, s)
			}
		}
		return strings.Join(items, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Flatten collapses a nested providedRequirements payload into a flat
// field map. Values under mandatoryRequirements and then
// optionalRequirements are lifted to the top level, later groups
// overwriting earlier ones; remaining top-level keys are added only when
// not already present. Nil and empty-string values are dropped.
func Flatten(provided map[string]interface{}) map[string]interface{} {
	flat := map[string]interface{}{}
	if provided == nil {
		return flat
	}
	lift := func(v interface{}) {
		group, ok := v.(map[string]interface{})
		if !ok {
			return
		}
		for k, val := range group {
			if isEmpty(val) {
				continue
			}
			flat[k] = val
		}
	}
	lift(provided["mandatoryRequirements"])
	lift(provided["optionalRequirements"])
	for k, v := range provided {
		if k == "mandatoryRequirements" || k == "optionalRequirements" {
			continue
		}
		if _, exists := flat[k]; exists {
			continue
		}
		if isEmpty(v) {
			continue
		}
		flat[k] = v
	}
	return flat
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// MergeWithSchema overlays collected fields on top of the schema so every
// mandatory and optional key is present in the result. Keys the user has
// already provided keep their values; schema keys never seen before are
// filled with an empty string. Provided keys outside the schema are kept.
func MergeWithSchema(collected map[string]interface{}, schema *store.RequirementSchema) map[string]interface{} {
	merged := map[string]interface{}{}
	if schema != nil {
		for k := range schema.MandatoryRequirements {
			merged[k] = ""
		}
		for k := range schema.OptionalRequirements {
			merged[k] = ""
		}
	}
	for k, v := range collected {
		merged[k] = v
	}
	return merged
}

// WithoutProductType returns a copy of data with the productType key removed.
func WithoutProductType(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if k == "productType" {
			continue
		}
		out[k] = v
	}
	return out
}

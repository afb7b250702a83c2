package extract

import (
	"encoding/json"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// IsValidDataArray reports whether v is a non-empty array whose first element
// is an object with at least one key.
func IsValidDataArray(v any) bool {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return false
	}
	first, ok := arr[0].(map[string]any)
	return ok && len(first) > 0
}

func acceptData(raw string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	if !IsValidDataArray(v) {
		return nil, false
	}
	return v, true
}

// Data returns the best tabular dataset embedded in text, or nil.
func Data(text string) model.Dataset {
	v, ok := search(text, '[', dataTags, acceptData)
	if !ok {
		return nil
	}
	return model.Dataset(v.([]any))
}

// HasInlineData reports whether spec already carries a dataset, either as
// data.values or as a data.url reference.
func HasInlineData(spec model.Spec) bool {
	data, ok := spec["data"].(map[string]any)
	if !ok {
		return false
	}
	if values, ok := data["values"]; ok && values != nil {
		return true
	}
	url, _ := data["url"].(string)
	return url != ""
}

// MergeData returns spec with data attached as {"data": {"values": data}}.
// A spec that already carries a dataset, or an empty data argument, leaves
// spec unchanged. The input spec is never mutated.
func MergeData(spec model.Spec, data model.Dataset) model.Spec {
	if spec == nil {
		return nil
	}
	if HasInlineData(spec) || len(data) == 0 {
		return spec
	}

	merged := make(model.Spec, len(spec)+1)
	for k, v := range spec {
		merged[k] = v
	}
	merged["data"] = map[string]any{"values": []any(data)}
	return merged
}

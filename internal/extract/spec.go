package extract

import (
	"encoding/json"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// Fence language tags recognised for each tier. Longer tags come first so
// "vega-lite" is not consumed as "vega".
var (
	specTags = []string{"vega-lite", "vega", "json"}
	dataTags = []string{"json", "data"}
)

// IsValidSpec reports whether v looks like a Vega-Lite spec: a non-null
// object carrying both "mark" and "encoding" keys. Values are not inspected.
func IsValidSpec(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return false
	}
	_, hasMark := obj["mark"]
	_, hasEncoding := obj["encoding"]
	return hasMark && hasEncoding
}

func acceptSpec(raw string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	if !IsValidSpec(v) {
		return nil, false
	}
	return v, true
}

// Spec returns the best chart specification embedded in text, or nil.
// Fenced blocks win over bare objects; among valid candidates of a tier the
// longest source region wins.
func Spec(text string) model.Spec {
	v, ok := search(text, '{', specTags, acceptSpec)
	if !ok {
		return nil
	}
	return model.Spec(v.(map[string]any))
}

// Chart returns Spec(text) with the best dataset in text merged in as its
// inline data when the spec carries none.
func Chart(text string) model.Spec {
	spec := Spec(text)
	if spec == nil {
		return nil
	}
	return MergeData(spec, Data(text))
}

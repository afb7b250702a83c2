package extract

import (
	"reflect"
	"strings"
	"testing"

	"github.com/tinytelemetry/chartstream/internal/model"
)

func TestBalancedEnd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		want int
	}{
		{"flat", `{"a":1} tail`, 7},
		{"nested", `{"a":{"b":{}}}`, 14},
		{"brace in string", `{"a":"}"}`, 9},
		{"escaped quote", `{"a":"\"}"}`, 11},
		{"escaped backslash", `{"a":"\\"}`, 10},
		{"unclosed", `{"a":{"b":1}`, -1},
		{"array", `[1,[2],3]x`, 9},
		{"not an opener", `abc`, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := balancedEnd(tt.text, 0); got != tt.want {
				t.Errorf("balancedEnd(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestIsValidSpec(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"mark and encoding", map[string]any{"mark": "bar", "encoding": map[string]any{}}, true},
		{"null values still count", map[string]any{"mark": nil, "encoding": nil}, true},
		{"missing encoding", map[string]any{"mark": "bar"}, false},
		{"missing mark", map[string]any{"encoding": map[string]any{}}, false},
		{"nil", nil, false},
		{"array", []any{map[string]any{"mark": "bar", "encoding": 1}}, false},
		{"string", "mark encoding", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSpec(tt.v); got != tt.want {
				t.Errorf("IsValidSpec(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestIsValidDataArray(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"records", []any{map[string]any{"a": 1.0}}, true},
		{"first is record", []any{map[string]any{"a": 1.0}, 5.0}, true},
		{"empty", []any{}, false},
		{"empty object", []any{map[string]any{}}, false},
		{"numbers", []any{1.0, 2.0}, false},
		{"null first", []any{nil}, false},
		{"object", map[string]any{"a": 1.0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidDataArray(tt.v); got != tt.want {
				t.Errorf("IsValidDataArray(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestSpec_FencedBlock(t *testing.T) {
	t.Parallel()
	text := "Here is the chart:\n```json\n{\"mark\":\"bar\",\"encoding\":{}}\n```\nEnjoy."
	got := Spec(text)
	want := model.Spec{"mark": "bar", "encoding": map[string]any{}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Spec = %#v, want %#v", got, want)
	}
}

func TestSpec_NestedObjectsSurvive(t *testing.T) {
	t.Parallel()
	text := "```vega-lite\n{\"mark\":{\"type\":\"line\"},\"encoding\":{\"x\":{\"field\":\"a\",\"type\":\"nominal\"}}}\n```"
	got := Spec(text)
	if got == nil {
		t.Fatal("Spec returned nil for nested fenced spec")
	}
	enc, ok := got["encoding"].(map[string]any)
	if !ok {
		t.Fatalf("encoding = %#v, want object", got["encoding"])
	}
	x, ok := enc["x"].(map[string]any)
	if !ok || x["field"] != "a" {
		t.Errorf("encoding.x = %#v, want field a", enc["x"])
	}
}

func TestSpec_FencedTierBeatsRawTier(t *testing.T) {
	t.Parallel()
	// The raw object is longer but lives outside any fence.
	raw := `{"mark":"point","encoding":{},"description":"` + strings.Repeat("x", 200) + `"}`
	text := "noise {not json} " + raw + "\n```json\n{\"mark\":\"bar\",\"encoding\":{}}\n```"
	got := Spec(text)
	if got["mark"] != "bar" {
		t.Fatalf("Spec mark = %v, want bar (fenced tier must win)", got["mark"])
	}
}

func TestSpec_SmallInvalidOutsideValidInside(t *testing.T) {
	t.Parallel()
	text := "{\"mark\":1}\n```\n{\"mark\":\"area\",\"encoding\":{\"y\":{}}}\n```"
	got := Spec(text)
	if got["mark"] != "area" {
		t.Fatalf("Spec = %#v, want the fenced area spec", got)
	}
}

func TestSpec_LongestFencedWins(t *testing.T) {
	t.Parallel()
	short := "```json\n{\"mark\":\"bar\",\"encoding\":{}}\n```"
	long := "```json\n{\"mark\":\"line\",\"encoding\":{\"x\":{\"field\":\"t\"}}}\n```"
	for _, text := range []string{short + "\n" + long, long + "\n" + short} {
		if got := Spec(text); got["mark"] != "line" {
			t.Errorf("Spec(%q) mark = %v, want line", text, got["mark"])
		}
	}
}

func TestSpec_TieGoesToFirst(t *testing.T) {
	t.Parallel()
	a := "```json\n{\"mark\":\"aaa\",\"encoding\":{}}\n```"
	b := "```json\n{\"mark\":\"bbb\",\"encoding\":{}}\n```"
	if got := Spec(a + "\n" + b); got["mark"] != "aaa" {
		t.Fatalf("Spec mark = %v, want aaa", got["mark"])
	}
}

func TestSpec_RawFallback(t *testing.T) {
	t.Parallel()
	text := `Sure! {"mark":"bar","encoding":{"x":{"field":"a"}}} and {"other":true}`
	got := Spec(text)
	if got["mark"] != "bar" {
		t.Fatalf("Spec = %#v, want raw bar spec", got)
	}
}

func TestSpec_RawFindsObjectNestedInInvalidWrapper(t *testing.T) {
	t.Parallel()
	text := `{ wrapper {"mark":"tick","encoding":{}} }`
	if got := Spec(text); got["mark"] != "tick" {
		t.Fatalf("Spec = %#v, want inner tick spec", got)
	}
}

func TestSpec_PartialStreamYieldsNil(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"",
		"```json\n{\"mark\":\"bar\"",
		"```json\n{\"mark\":\"bar\",\"encoding\":{",
		"{\"mark\":\"bar\"}",
	} {
		if got := Spec(text); got != nil {
			t.Errorf("Spec(%q) = %#v, want nil", text, got)
		}
	}
}

func TestSpec_UnfinishedFenceFallsBackToRaw(t *testing.T) {
	t.Parallel()
	// The closing fence has not streamed in yet, so only the raw tier matches.
	text := "```json\n{\"mark\":\"bar\",\"encoding\":{}}\n"
	if got := Spec(text); got["mark"] != "bar" {
		t.Fatalf("Spec = %#v, want bar via raw tier", got)
	}
}

func TestSpec_Idempotent(t *testing.T) {
	t.Parallel()
	text := "text ```json\n{\"mark\":\"bar\",\"encoding\":{\"x\":{\"field\":\"a\"}}}\n``` [{\"a\":1}]"
	first := Chart(text)
	second := Chart(text)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Chart not idempotent: %#v vs %#v", first, second)
	}
}

func TestData(t *testing.T) {
	t.Parallel()
	text := "rows: [1,2,3] and\n```data\n[{\"region\":\"Almaty\",\"revenue\":120},{\"region\":\"Astana\",\"revenue\":90}]\n```"
	got := Data(text)
	if len(got) != 2 {
		t.Fatalf("Data returned %d rows, want 2: %#v", len(got), got)
	}
	first := got[0].(map[string]any)
	if first["region"] != "Almaty" || first["revenue"] != 120.0 {
		t.Errorf("first row = %#v", first)
	}
}

func TestData_RawFallbackLongestWins(t *testing.T) {
	t.Parallel()
	text := `a [{"x":1}] b [{"x":1},{"x":2},{"x":3}] c [{}]`
	if got := Data(text); len(got) != 3 {
		t.Fatalf("Data = %#v, want the three-row array", got)
	}
}

func TestMergeData(t *testing.T) {
	t.Parallel()
	data := model.Dataset{map[string]any{"a": 1.0}}

	spec := model.Spec{"mark": "bar", "encoding": map[string]any{}}
	merged := MergeData(spec, data)
	values := merged["data"].(map[string]any)["values"].([]any)
	if len(values) != 1 {
		t.Fatalf("merged values = %#v", values)
	}
	if _, mutated := spec["data"]; mutated {
		t.Error("MergeData mutated its input")
	}

	carrying := model.Spec{"mark": "bar", "encoding": map[string]any{}, "data": map[string]any{"values": []any{}}}
	if got := MergeData(carrying, data); !reflect.DeepEqual(got, carrying) {
		t.Errorf("MergeData overwrote existing values: %#v", got)
	}

	byURL := model.Spec{"mark": "bar", "encoding": map[string]any{}, "data": map[string]any{"url": "data/cars.json"}}
	if got := MergeData(byURL, data); !reflect.DeepEqual(got, byURL) {
		t.Errorf("MergeData overwrote url dataset: %#v", got)
	}

	if got := MergeData(spec, nil); !reflect.DeepEqual(got, spec) {
		t.Errorf("MergeData with no data = %#v, want spec unchanged", got)
	}
	if got := MergeData(nil, data); got != nil {
		t.Errorf("MergeData(nil) = %#v, want nil", got)
	}
}

func TestChart_MergesDatasetFromText(t *testing.T) {
	t.Parallel()
	text := "```json\n{\"mark\":\"bar\",\"encoding\":{\"x\":{\"field\":\"region\"}}}\n```\n" +
		"```json\n[{\"region\":\"Almaty\",\"revenue\":120}]\n```"
	got := Chart(text)
	data, ok := got["data"].(map[string]any)
	if !ok {
		t.Fatalf("Chart data = %#v, want merged dataset", got["data"])
	}
	if values := data["values"].([]any); len(values) != 1 {
		t.Errorf("values = %#v, want 1 row", values)
	}
}

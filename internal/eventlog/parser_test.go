package eventlog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinytelemetry/chartstream/internal/model"
)

func TestParseLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
		want model.StreamEvent
		ok   bool
	}{
		{"token", `{"event":"token","data":{"delta":"hi"}}`, model.Token("hi"), true},
		{"empty delta", `{"event":"token","data":{"delta":""}}`, model.Token(""), true},
		{"done without data", `{"event":"done"}`, model.Done(), true},
		{"done with payload", `{"event":"done","data":{"usage":3}}`, model.Done(), true},
		{"error", `{"event":"error","data":{"message":"rate limited"}}`, model.Error("rate limited"), true},
		{"blank", "   ", model.StreamEvent{}, false},
		{"malformed json", `{"event":"token"`, model.StreamEvent{}, false},
		{"json null", `null`, model.StreamEvent{}, false},
		{"json array", `[1,2]`, model.StreamEvent{}, false},
		{"missing event", `{"data":{"delta":"x"}}`, model.StreamEvent{}, false},
		{"numeric event", `{"event":7,"data":{"delta":"x"}}`, model.StreamEvent{}, false},
		{"unknown event", `{"event":"ping","data":{}}`, model.StreamEvent{}, false},
		{"token missing data", `{"event":"token"}`, model.StreamEvent{}, false},
		{"token numeric delta", `{"event":"token","data":{"delta":5}}`, model.StreamEvent{}, false},
		{"error missing message", `{"event":"error","data":{}}`, model.StreamEvent{}, false},
		{"error data string", `{"event":"error","data":"boom"}`, model.StreamEvent{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ParseLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParse_PreservesOrderAndDropsInvalid(t *testing.T) {
	t.Parallel()
	content := strings.Join([]string{
		`{"event":"token","data":{"delta":"a"}}`,
		``,
		`not json`,
		`{"event":"token","data":{"delta":"b"}}`,
		`{"event":"token","data":{}}`,
		`{"event":"error","data":{"message":"x"}}`,
		`{"event":"token","data":{"delta":"c"}}`,
		`{"event":"done","data":{}}`,
	}, "\n")

	got := Parse(content)
	want := []model.StreamEvent{
		model.Token("a"),
		model.Token("b"),
		model.Error("x"),
		model.Token("c"),
		model.Done(),
	}
	if len(got) != len(want) {
		t.Fatalf("Parse returned %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParse_EmptyInputs(t *testing.T) {
	t.Parallel()
	for _, content := range []string{"", "\n\n  \n", "garbage\n{\"event\":\"nope\"}"} {
		if got := Parse(content); len(got) != 0 {
			t.Errorf("Parse(%q) = %+v, want empty", content, got)
		}
	}
}

func TestParse_HandlesCRLF(t *testing.T) {
	t.Parallel()
	got := Parse("{\"event\":\"token\",\"data\":{\"delta\":\"x\"}}\r\n{\"event\":\"done\"}\r\n")
	if len(got) != 2 || got[0] != model.Token("x") || got[1] != model.Done() {
		t.Fatalf("Parse with CRLF = %+v", got)
	}
}

func TestRead_LineTooLong(t *testing.T) {
	t.Parallel()
	line := `{"event":"token","data":{"delta":"` + strings.Repeat("x", 256) + `"}}`
	_, err := Read(strings.NewReader(line), 64)
	if err == nil {
		t.Fatal("expected error for oversized line")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.jsonl")
	if err := os.WriteFile(valid, []byte("{\"event\":\"token\",\"data\":{\"delta\":\"x\"}}\n{\"event\":\"done\"}\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	events, err := Load(valid, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(events))
	}

	empty := filepath.Join(dir, "empty.jsonl")
	if err := os.WriteFile(empty, []byte("junk\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(empty, 0); !errors.Is(err, ErrNoEvents) {
		t.Fatalf("Load(empty) err = %v, want ErrNoEvents", err)
	}

	if _, err := Load(filepath.Join(dir, "missing.jsonl"), 0); err == nil {
		t.Fatal("expected error for missing file")
	}
}

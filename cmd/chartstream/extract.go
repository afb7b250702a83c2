package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/chartstream/internal/eventlog"
	"github.com/tinytelemetry/chartstream/internal/model"
	"github.com/tinytelemetry/chartstream/internal/session"
)

// runExtract replays a recording without delays and writes the final chart
// spec ("null" when none was found). A recording that ends in an error event
// still prints what was extracted before failing.
func runExtract(w io.Writer, path, format string, maxLineSize int) error {
	events, err := eventlog.Load(path, maxLineSize)
	if err != nil {
		return err
	}

	res := session.Collect(events)
	if err := writeSpec(w, res.Spec, format); err != nil {
		return err
	}
	if res.State == model.StateError {
		return fmt.Errorf("stream ended with error: %s", res.Message)
	}
	return nil
}

func writeSpec(w io.Writer, spec model.Spec, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any(spec)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

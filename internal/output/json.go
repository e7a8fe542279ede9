package output

import (
	"encoding/json"
	"io"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/syncengine"
)

// JSONFormatter outputs data in JSON format.
type JSONFormatter struct{}

// FormatResult outputs the result of a sync or status run as JSON.
func (f *JSONFormatter) FormatResult(w io.Writer, result *syncengine.Result) error {
	return f.writeJSON(w, result)
}

// FormatBackends outputs a connectivity report as JSON.
func (f *JSONFormatter) FormatBackends(w io.Writer, statuses []BackendStatus) error {
	return f.writeJSON(w, statuses)
}

// FormatConfig outputs configuration as JSON.
func (f *JSONFormatter) FormatConfig(w io.Writer, cfg *config.Config) error {
	return f.writeJSON(w, cfg)
}

// FormatError outputs an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, message string) error {
	return f.writeJSON(w, map[string]any{"error": message})
}

// writeJSON encodes the value as indented JSON and writes it to w.
func (f *JSONFormatter) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

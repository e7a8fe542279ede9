// Package output provides formatters for displaying sync results,
// configuration, and backend status in the CLI's supported output formats.
package output

import (
	"io"

	"github.com/alexbrand/tasksync/internal/config"
	"github.com/alexbrand/tasksync/internal/syncengine"
)

// Format represents an output format type.
type Format string

const (
	FormatTable  Format = "table"
	FormatJSON   Format = "json"
	FormatPlain  Format = "plain"
	FormatIDOnly Format = "id-only"
)

// ValidFormats returns all valid format values.
func ValidFormats() []Format {
	return []Format{FormatTable, FormatJSON, FormatPlain, FormatIDOnly}
}

// IsValid checks if the format is a valid output format.
func (f Format) IsValid() bool {
	switch f {
	case FormatTable, FormatJSON, FormatPlain, FormatIDOnly:
		return true
	default:
		return false
	}
}

// BackendStatus is one row of the `tasksync backends` report: a configured
// workspace and the outcome of a lightweight connectivity check against it.
type BackendStatus struct {
	Workspace string
	Kind      string
	OK        bool
	TaskCount int
	Message   string
}

// Formatter defines the interface for rendering sync results, configuration,
// and backend status in a specific output format.
type Formatter interface {
	// FormatResult outputs the result of a sync or status (dry-run) run.
	FormatResult(w io.Writer, result *syncengine.Result) error

	// FormatBackends outputs a connectivity report for configured workspaces.
	FormatBackends(w io.Writer, statuses []BackendStatus) error

	// FormatConfig outputs configuration.
	FormatConfig(w io.Writer, cfg *config.Config) error

	// FormatError outputs an error.
	FormatError(w io.Writer, message string) error
}

// New creates a formatter for the specified format.
func New(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatPlain:
		return &PlainFormatter{}
	case FormatIDOnly:
		return &IDOnlyFormatter{}
	case FormatTable:
		fallthrough
	default:
		return &TableFormatter{}
	}
}

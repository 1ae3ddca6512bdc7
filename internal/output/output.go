// Package output provides formatters that render setup and health reports in
// different formats.
package output

import (
	"fmt"
	"io"

	"github.com/ancients-collective/rigup/internal/types"
)

// Formatter writes reports to the given writer.
type Formatter interface {
	WriteSetup(w io.Writer, report *types.SetupReport) error
	WriteHealth(w io.Writer, report *types.HealthReport) error
}

// Formats lists the accepted --format values.
var Formats = []string{"text", "json", "jsonl"}

// ForFormat returns the formatter for name. text is configured from opts.
func ForFormat(name string, opts TextFormatter) (Formatter, error) {
	switch name {
	case "text", "":
		f := opts
		return &f, nil
	case "json":
		return &JSONFormatter{}, nil
	case "jsonl":
		return &JSONLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (must be text, json, or jsonl)", name)
	}
}

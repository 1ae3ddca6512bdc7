package output

import (
	"encoding/json"
	"io"

	"github.com/ancients-collective/rigup/internal/types"
)

// JSONFormatter writes a report as a single JSON object.
type JSONFormatter struct{}

// WriteSetup renders the full setup report as pretty-printed JSON.
func (f *JSONFormatter) WriteSetup(w io.Writer, report *types.SetupReport) error {
	return encodeIndented(w, report)
}

// WriteHealth renders the full health report as pretty-printed JSON.
func (f *JSONFormatter) WriteHealth(w io.Writer, report *types.HealthReport) error {
	return encodeIndented(w, report)
}

func encodeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

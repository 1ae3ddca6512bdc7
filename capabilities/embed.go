// Package capabilities embeds the built-in capability catalog.
package capabilities

import "embed"

// FS holds every capability definition shipped with rigup.
//
//go:embed *.yaml
var FS embed.FS

package web

import "embed"

// Static holds the embedded web/static directory.
// Handlers access it via fs.Sub(Static, "static").
//
//go:embed static
var Static embed.FS

// Templates holds the embedded HTML templates. The web adapter parses each
// page against the base layout at startup.
//
//go:embed templates
var Templates embed.FS

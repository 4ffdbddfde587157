// Package handler exposes the configuration service over HTTP.
//
// ConfigHandler covers the document lifecycle: import and export of
// setup and measurement files, revision history and rollback, regime
// switching, limit tables, validation and derived per-channel values.
// PreviewHandler renders chart previews of planned scans, touchdowns
// and ramps before anything drives hardware.
//
// Responses are JSON throughout; validation failures carry the full
// problem report so clients can show every finding at once.
package handler

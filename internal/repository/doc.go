// Package repository defines the data access interface for stored
// configuration documents.
//
// Documents are versioned: every import of a setup or measurement file
// creates a new revision, and exactly one revision per (kind, name) is
// active at a time. Older revisions can be re-activated, which is how
// an operator rolls back a bad configuration push.
//
// The actual implementation is in the sqlite subpackage, which uses WAL
// mode for concurrency and migrates its schema on startup.
package repository

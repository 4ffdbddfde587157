// Package service implements the business logic of the configuration
// server on top of the repository.
//
// # Responsibilities
//
// ConfigService owns the in-memory copies of the active setup and
// measurement documents. Imports are parsed, validated, stored as a new
// active revision, and only then swapped into memory; a document that
// fails validation is never stored.
//
// Derived queries answer what the control software would compute from
// the raw documents: the voltage-limit tables effective under the
// current temperature regime, per-channel conversion prefactors built
// from the sensor calibrations and lock-in programming, and the
// per-channel DAQ sampling rate.
//
// # Events
//
// State changes publish on an EventBus with non-blocking delivery so a
// slow subscriber can never stall an import.
package service

// Package domain defines the configuration data model for a scanning
// SQUID microscope control station.
//
// # Core Types
//
// Setup represents the microscope setup file: station metadata plus every
// wired instrument (DAQ card, piezo scanner, coarse positioner, lock-in
// amplifiers, temperature controllers, SQUID sensor).
//
// MeasurementSet represents a measurement-preset file: named experiments
// (plane scan, capacitive touchdown, modulated IV), each with an output
// filename, channel definitions and a constants block.
//
// Regime selects between room-temperature and low-temperature voltage
// limit sets; every limit in a setup is keyed by regime.
//
// # Quantity Convention
//
// Physical values are never bare numbers: every quantity is a
// "<number> <unit>" string validated against the unit vocabulary in the
// units package. Limits are [low, high] pairs of such strings.
//
// # Validation
//
// ValidateSetup and ValidateMeasurements implement the data-integrity
// rules of the format: quantity symbols must be in the vocabulary,
// ranges must be ordered low <= high, channel index maps must not repeat
// indices within an instrument, regime keys are limited to RT/LT, and
// cross-references (lock-in bindings, DAQ input names, positioner axes)
// must resolve. Findings are collected into a Report rather than
// failing on the first problem.
//
// # Design Principles
//
// - No database or external dependencies
// - Pure domain logic without infrastructure concerns
// - JSON field names match the configuration files the control software consumes
package domain

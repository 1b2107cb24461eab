// Package util provides small helpers shared by the telemetry packages.
//
// Key utilities:
//   - TruncateRunes: bounds attacker-controlled strings before they are stored
//   - HashForLogging: hides identifiers in process logs
package util

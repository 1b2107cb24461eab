// Package testutil provides testing utilities for the sentinel packages:
// a controllable clock for deterministic expiry tests and a quiet logger.
package testutil

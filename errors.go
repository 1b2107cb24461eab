package sentinel

import "errors"

// ErrInvalidConfig is returned for configuration that cannot be used, such
// as unparseable YAML, unknown level names or uncompilable patterns.
// Out-of-range numbers are not errors; they fall back to defaults.
var ErrInvalidConfig = errors.New("invalid sentinel configuration")

package cli

import (
	"bytes"
	_ "embed"
)

//go:embed default_config.yaml
var embeddedMigrationDefaults []byte

// EmbeddedDefaultConfiguration returns a copy of the built-in defaults for every
// configuration key together with their encoding.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return bytes.Clone(embeddedMigrationDefaults), configurationTypeConstant
}

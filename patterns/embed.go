// Package patterns provides the embedded default recognizer catalogue.
// The YAML file uses the Presidio-compatible recognizer format with veil
// extensions (the capture group index per pattern).
package patterns

import _ "embed"

//go:embed resume_pii.yaml
var resumePIIYAML []byte

// ResumePIIYAML returns the embedded default resume PII recognizer definitions.
func ResumePIIYAML() []byte { return resumePIIYAML }

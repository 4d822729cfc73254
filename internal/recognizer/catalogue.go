package recognizer

import (
	"fmt"

	"github.com/dativo-io/veil/patterns"
)

// Defaults returns the built-in resume recognizers parsed from the embedded
// resume_pii.yaml catalogue. This is the first layer in the merge chain.
func Defaults() ([]Config, error) {
	f, err := ParseFile(patterns.ResumePIIYAML())
	if err != nil {
		return nil, fmt.Errorf("parsing embedded recognizer catalogue: %w", err)
	}
	return f.Recognizers, nil
}

// MustDefaults is like Defaults but panics on error. The embedded catalogue
// is expected to always parse.
func MustDefaults() []Config {
	recs, err := Defaults()
	if err != nil {
		panic(fmt.Sprintf("recognizer.Defaults: %v", err))
	}
	return recs
}

package scanner_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/openclaw/aasc/pkg/scanner"
)

// TestScanSensitiveDataMatchesNeverOverlapProperty checks spec §8's
// universal invariant ("sensitive matches non-overlapping and in
// bounds") against arbitrary ASCII text, not just hand-picked fixtures.
func TestScanSensitiveDataMatchesNeverOverlapProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("matches are ordered, non-overlapping, and in-bounds", prop.ForAll(
		func(text string) bool {
			matches := scanner.ScanSensitiveData(text, nil)

			lastEnd := 0
			for _, m := range matches {
				if m.Offset < lastEnd {
					return false
				}
				if m.Offset < 0 || m.Offset+m.Length > len(text) {
					return false
				}
				lastEnd = m.Offset + m.Length
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestRedactNeverLengthensNonMatchingText verifies Redact only touches
// detected spans, so text with no sensitive data round-trips unchanged.
func TestRedactNeverLengthensNonMatchingText(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("redacting text with no sensitive data is a no-op", prop.ForAll(
		func(text string) bool {
			if scanner.ContainsSensitiveData(text, nil) {
				return true // not the case this property targets
			}
			return scanner.Redact(text, nil) == text
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

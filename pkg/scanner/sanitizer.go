package scanner

import "strings"

// SanitizeResult is the outcome of running tool output through the
// Tool Output Sanitiser.
type SanitizeResult struct {
	Sanitized        string
	Modified         bool
	InjectionPatterns []InjectionMatch
	HasSensitiveData bool
}

const securityHeader = "[SECURITY WARNING: this tool output contained content that looked like an attempt to override system instructions. It has been defanged and wrapped below.]"

var stripReplacements = map[string]string{
	KindSystemTag:     "[[TAG_STRIPPED]]",
	KindRoleOverride:  "[[ROLE_STRIPPED]]",
	KindBoundaryStart: "[[MARKER_STRIPPED]]",
	KindBoundaryEnd:   "[[END_MARKER_STRIPPED]]",
}

// Sanitize implements spec §4.9. toolName and extraPatterns may be
// empty/nil.
//
// Output already carrying the sanitiser's own wrapper is a fixed
// point: without this check, the wrapper's own <<<TOOL_OUTPUT>>>
// boundary markers would themselves be detected as a fresh injection
// on a second pass, nesting a new wrapper around the old one forever.
func Sanitize(output string, toolName string, extraPatterns []string) SanitizeResult {
	if output == "" {
		return SanitizeResult{Sanitized: output, Modified: false}
	}
	if strings.HasPrefix(output, securityHeader) {
		return SanitizeResult{Sanitized: output, Modified: false}
	}

	injections := DetectInjectionPatterns(output)
	sensitive := ScanSensitiveData(output, extraPatterns)

	if len(injections) == 0 && len(sensitive) == 0 {
		return SanitizeResult{Sanitized: output, Modified: false}
	}

	body := output
	if len(injections) > 0 {
		body = stripMarkers(body)
	}

	sanitized := body
	if len(injections) > 0 {
		var b strings.Builder
		b.WriteString(securityHeader)
		b.WriteString("\n<<<TOOL_OUTPUT>>>\n")
		b.WriteString(body)
		b.WriteString("\n<<<END_TOOL_OUTPUT>>>")
		sanitized = b.String()
	}

	return SanitizeResult{
		Sanitized:        sanitized,
		Modified:         true,
		InjectionPatterns: injections,
		HasSensitiveData: len(sensitive) > 0,
	}
}

// stripMarkers replaces every known injection marker with its stripped
// placeholder token. Runs each pattern independently so overlapping
// kinds (e.g. a tag inside a boundary marker) are all neutralised.
func stripMarkers(text string) string {
	for _, p := range injectionPatterns {
		replacement, ok := stripReplacements[p.Kind]
		if !ok {
			// instruction-veto phrases are reported but left in place;
			// stripping natural-language sentences would mangle
			// legitimate tool output far more than a literal marker does.
			continue
		}
		text = p.Re.ReplaceAllString(text, replacement)
	}
	return text
}

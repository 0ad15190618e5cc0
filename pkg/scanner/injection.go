package scanner

import "regexp"

// InjectionMatch is a detected prompt-injection marker occurrence.
type InjectionMatch struct {
	Kind   string
	Offset int
	Length int
}

// injection marker kinds, referenced by the sanitiser when choosing a
// stripped-marker replacement token.
const (
	KindBoundaryStart   = "boundary_marker_start"
	KindBoundaryEnd     = "boundary_marker_end"
	KindSystemTag       = "system_tag"
	KindRoleOverride    = "role_override"
	KindInstructionVeto = "instruction_veto"
)

type injectionPattern struct {
	Kind string
	Re   *regexp.Regexp
}

// boundaryStartMarkers and boundaryEndMarkers are the literal strings
// the system itself uses to delimit untrusted content. Their
// appearance inside tool output is itself a smuggling attempt and must
// be stripped and reported. They are the single source of truth for
// both the detection patterns below and the sanitiser's stripMarkers.
var boundaryStartMarkers = []string{"<<<TOOL_OUTPUT>>>", "<<<EXTERNAL_UNTRUSTED_CONTENT>>>"}
var boundaryEndMarkers = []string{"<<<END_TOOL_OUTPUT>>>", "<<<END_EXTERNAL_UNTRUSTED_CONTENT>>>"}

var injectionPatterns = buildInjectionPatterns()

func buildInjectionPatterns() []injectionPattern {
	patterns := []injectionPattern{
		{KindInstructionVeto, regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`)},
		{KindInstructionVeto, regexp.MustCompile(`(?i)forget\s+your\s+instructions`)},
		{KindSystemTag, regexp.MustCompile(`(?i)<\s*system\s*>`)},
		{KindRoleOverride, regexp.MustCompile(`\]\s*\n?\s*\[system\]\s*:`)},
	}
	for _, m := range boundaryStartMarkers {
		patterns = append(patterns, injectionPattern{KindBoundaryStart, regexp.MustCompile(regexp.QuoteMeta(m))})
	}
	for _, m := range boundaryEndMarkers {
		patterns = append(patterns, injectionPattern{KindBoundaryEnd, regexp.MustCompile(regexp.QuoteMeta(m))})
	}
	return patterns
}

// DetectInjectionPatterns scans text for known prompt-injection markers.
func DetectInjectionPatterns(text string) []InjectionMatch {
	var out []InjectionMatch
	for _, p := range injectionPatterns {
		for _, loc := range p.Re.FindAllStringIndex(text, -1) {
			out = append(out, InjectionMatch{Kind: p.Kind, Offset: loc[0], Length: loc[1] - loc[0]})
		}
	}
	return out
}

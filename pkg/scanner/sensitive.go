// Package scanner implements the sensitive-data detector, the
// external-content (prompt-injection) detector, the output scanner,
// the tool-output sanitiser, and the outbound data-flow validator —
// the four related components spec §4.7-§4.11 describe as sharing one
// underlying pattern engine.
//
// No single teacher file matches this shape; the ordered,
// most-specific-first regex table is grounded on the substring
// heuristics of the teacher's core/pkg/runtime/toolwrap.go
// ClassifyError (a small ordered table of string checks producing a
// typed category), generalised here to compiled regular expressions
// with an explicit non-overlap sweep.
package scanner

import (
	"regexp"
	"sort"
	"strings"
)

// sensitivePattern is one built-in detector entry. Order in the slice
// below is significant: more specific patterns must precede more
// general ones so that, e.g., an Anthropic key is classified as such
// even though it would also satisfy a looser OpenAI-shaped pattern.
type sensitivePattern struct {
	Type string
	Re   *regexp.Regexp
}

var builtinPatterns = []sensitivePattern{
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws_secret_key", regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`)},
	{"anthropic_api_key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai_api_key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)},
	{"slack_token", regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`)},
	{"private_key_pem", regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA |)?PRIVATE KEY-----`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{5,}\.eyJ[A-Za-z0-9_-]{5,}\.[A-Za-z0-9_-]{5,}`)},
	{"generic_secret_assignment", regexp.MustCompile(`(?i)(api[_-]?key|secret)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,}['"]?`)},
	{"credit_card", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\d\b`)},
	{"us_ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
}

// SensitiveMatch mirrors contracts.SensitiveMatch; kept local to avoid
// an import cycle since contracts stays dependency-free.
type SensitiveMatch struct {
	Type    string
	Offset  int
	Length  int
	Preview string
}

const previewMaxChars = 8

func makePreview(raw string) string {
	runes := []rune(raw)
	if len(runes) <= previewMaxChars {
		return raw
	}
	return string(runes[:previewMaxChars]) + "…"
}

// ScanSensitiveData scans text against the built-in pattern table plus
// any caller-supplied extra regex patterns (invalid extras are
// silently skipped). Matches are deduplicated by sorting on
// (offset asc, length desc) and sweeping: a candidate is accepted iff
// its offset is at or past the end of the last accepted match.
func ScanSensitiveData(text string, extra []string) []SensitiveMatch {
	var candidates []SensitiveMatch

	for _, p := range builtinPatterns {
		for _, loc := range p.Re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, SensitiveMatch{
				Type:    p.Type,
				Offset:  loc[0],
				Length:  loc[1] - loc[0],
				Preview: makePreview(text[loc[0]:loc[1]]),
			})
		}
	}

	for _, raw := range extra {
		re, err := regexp.Compile(raw)
		if err != nil {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			candidates = append(candidates, SensitiveMatch{
				Type:    "custom",
				Offset:  loc[0],
				Length:  loc[1] - loc[0],
				Preview: makePreview(text[loc[0]:loc[1]]),
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Offset != candidates[j].Offset {
			return candidates[i].Offset < candidates[j].Offset
		}
		return candidates[i].Length > candidates[j].Length
	})

	var accepted []SensitiveMatch
	lastEnd := -1
	for _, c := range candidates {
		if c.Offset >= lastEnd {
			accepted = append(accepted, c)
			lastEnd = c.Offset + c.Length
		}
	}
	return accepted
}

// ContainsSensitiveData is a boolean shortcut over ScanSensitiveData.
func ContainsSensitiveData(text string, extra []string) bool {
	return len(ScanSensitiveData(text, extra)) > 0
}

const redactedLiteral = "[REDACTED]"

// Redact replaces each detected match with the literal [REDACTED],
// preserving the intervening plaintext.
func Redact(text string, extra []string) string {
	matches := ScanSensitiveData(text, extra)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	cursor := 0
	for _, m := range matches {
		b.WriteString(text[cursor:m.Offset])
		b.WriteString(redactedLiteral)
		cursor = m.Offset + m.Length
	}
	b.WriteString(text[cursor:])
	return b.String()
}

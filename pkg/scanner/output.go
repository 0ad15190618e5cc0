package scanner

import "strings"

// ScanResult is the outcome of running agent-bound text through the
// Output Scanner.
type ScanResult struct {
	Clean           bool
	Violations      []Violation
	SensitiveMatches []SensitiveMatch
}

// Violation mirrors contracts.Violation, kept local for the same
// reason as SensitiveMatch above.
type Violation struct {
	Type     string
	Severity string
	Offset   int
	Message  string
}

// DefaultSystemPromptFragments are the built-in echo markers checked
// by the Output Scanner when the caller supplies none of its own.
var DefaultSystemPromptFragments = []string{
	"you are an ai assistant",
	"system:",
	"<<sys>>",
	"[inst]",
}

// OutputScannerConfig configures Scan.
type OutputScannerConfig struct {
	Enabled               bool
	SystemPromptFragments []string
	ExtraSensitivePatterns []string
}

// Scan implements spec §4.10.
func Scan(output string, cfg OutputScannerConfig) ScanResult {
	if !cfg.Enabled || output == "" {
		return ScanResult{Clean: true}
	}

	fragments := cfg.SystemPromptFragments
	if fragments == nil {
		fragments = DefaultSystemPromptFragments
	}

	var violations []Violation

	sensitive := ScanSensitiveData(output, cfg.ExtraSensitivePatterns)
	for _, m := range sensitive {
		violations = append(violations, Violation{Type: "data_leakage", Severity: "critical", Offset: m.Offset})
	}

	lower := strings.ToLower(output)
	for _, frag := range fragments {
		fragLower := strings.ToLower(frag)
		if idx := strings.Index(lower, fragLower); idx >= 0 {
			violations = append(violations, Violation{Type: "system_prompt_echo", Severity: "warning", Offset: idx})
		}
	}

	return ScanResult{
		Clean:           len(violations) == 0,
		Violations:      violations,
		SensitiveMatches: sensitive,
	}
}

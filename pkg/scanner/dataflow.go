package scanner

import (
	"strings"

	"github.com/openclaw/aasc/pkg/ratelimit"
)

// DataFlowResult is the outcome of validating data bound for an
// external provider.
type DataFlowResult struct {
	Allowed          bool
	Redacted         string
	Violations       []Violation
	SensitiveMatches []SensitiveMatch
}

// DataFlowConfig configures Validate. Limiter is nil-able: a nil
// Limiter, or a Limiter with no budget configured for provider, never
// denies a call (SPEC_FULL.md §4.19).
type DataFlowConfig struct {
	AllowedProviders []string // empty means no allow-list restriction
	ExtraPatterns    []string
	Limiter          *ratelimit.Limiter
}

// Validate implements spec §4.11, applying the per-provider outbound
// rate budget from cfg.Limiter before the sensitive-data scan.
func Validate(data, provider string, cfg DataFlowConfig) DataFlowResult {
	if len(cfg.AllowedProviders) > 0 && !containsFold(cfg.AllowedProviders, provider) {
		return DataFlowResult{
			Allowed:  false,
			Redacted: data,
			Violations: []Violation{{
				Type:     "provider_not_allowed",
				Severity: "critical",
				Message:  "Provider " + provider + " is not in the allowed providers list.",
			}},
		}
	}

	if cfg.Limiter != nil && !cfg.Limiter.Allow(provider) {
		return DataFlowResult{
			Allowed:  false,
			Redacted: data,
			Violations: []Violation{{
				Type:     "rate_limited",
				Severity: "critical",
				Message:  "rate limit exceeded for provider " + provider,
			}},
		}
	}

	matches := ScanSensitiveData(data, cfg.ExtraPatterns)
	if len(matches) == 0 {
		return DataFlowResult{Allowed: true, Redacted: data}
	}

	violations := make([]Violation, 0, len(matches))
	for _, m := range matches {
		violations = append(violations, Violation{Type: "data_leakage", Severity: "critical", Offset: m.Offset})
	}

	return DataFlowResult{
		Allowed:          true,
		Redacted:         Redact(data, cfg.ExtraPatterns),
		Violations:       violations,
		SensitiveMatches: matches,
	}
}

func containsFold(list []string, target string) bool {
	lower := strings.ToLower(target)
	for _, v := range list {
		if strings.ToLower(v) == lower {
			return true
		}
	}
	return false
}

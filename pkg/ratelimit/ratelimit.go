// Package ratelimit implements the Data Flow Validator's per-provider
// outbound rate limiting (SPEC_FULL.md §4.19).
//
// The teacher hand-rolls a token bucket (core/pkg/kernel/limiter.go);
// this package uses the ecosystem golang.org/x/time/rate package
// instead, per the standing instruction to prefer a real dependency
// over a stdlib-only reimplementation once a component can exercise
// it — the bucket math is identical, only the source differs.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// ProviderLimits maps provider name to its requests-per-minute budget.
// A provider with no entry is unlimited.
type ProviderLimits map[string]int

// Limiter enforces per-provider outbound call budgets.
type Limiter struct {
	mu       sync.Mutex
	limits   ProviderLimits
	buckets  map[string]*rate.Limiter
}

// New returns a Limiter configured with the given per-provider limits.
// A nil or empty limits map means no provider is rate limited.
func New(limits ProviderLimits) *Limiter {
	return &Limiter{limits: limits, buckets: make(map[string]*rate.Limiter)}
}

func (l *Limiter) bucketFor(provider string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[provider]; ok {
		return b
	}

	rpm, configured := l.limits[provider]
	if !configured || rpm <= 0 {
		return nil
	}

	b := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
	l.buckets[provider] = b
	return b
}

// Allow reports whether a call to provider is within its configured
// budget. Providers with no configured limit are always allowed.
func (l *Limiter) Allow(provider string) bool {
	b := l.bucketFor(provider)
	if b == nil {
		return true
	}
	return b.Allow()
}

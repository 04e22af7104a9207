package middleware

import (
	"strings"
	"sync"
)

// ExemptPaths is the registry of path prefixes that bypass authentication
// entirely. Registration is additive only; there is no removal, so a path
// once exempt stays exempt for the process lifetime.
type ExemptPaths struct {
	mu       sync.RWMutex
	prefixes []string
}

func NewExemptPaths(baseline ...string) *ExemptPaths {
	e := &ExemptPaths{}
	e.Register(baseline...)
	return e
}

// Register adds prefixes to the registry. Empty strings and duplicates
// are dropped.
func (e *ExemptPaths) Register(prefixes ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		seen := false
		for _, existing := range e.prefixes {
			if existing == p {
				seen = true
				break
			}
		}
		if !seen {
			e.prefixes = append(e.prefixes, p)
		}
	}
}

// IsExempt reports whether the request path equals or extends any
// registered prefix.
func (e *ExemptPaths) IsExempt(path string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, prefix := range e.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the registered prefixes, for diagnostics.
func (e *ExemptPaths) Snapshot() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.prefixes...)
}

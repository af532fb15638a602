// Package route decides which request paths the fallback interceptor sees.
package route

import (
	"github.com/ryanuber/go-glob"
	"github.com/samber/lo"
)

// Matcher matches request paths against glob patterns such as "/media/*".
// A "*" spans path segments, so "/media/*" also covers "/media/a/b.png".
type Matcher struct {
	patterns []string
}

// New creates a Matcher for the given patterns.
func New(patterns []string) *Matcher {
	return &Matcher{patterns: append([]string(nil), patterns...)}
}

// Match reports whether path matches any pattern.
func (m *Matcher) Match(path string) bool {
	return lo.ContainsBy(m.patterns, func(p string) bool {
		return glob.Glob(p, path)
	})
}

// Patterns returns a copy of the configured patterns.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Package filters holds Liquid filters bundled with liquidview.
package filters

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicyOnce sync.Once
	ugcPolicy     *bluemonday.Policy
)

// Defaults returns the bundled filters by Liquid name, ready for
// liquidview.WithFilters.
func Defaults() map[string]any {
	return map[string]any{
		"sanitize": Sanitize,
	}
}

// Sanitize strips markup that is unsafe in user generated content (scripts,
// event handlers, javascript: URLs) and keeps basic formatting. It is meant
// for templates rendered with autoescape off; with autoescape on the cleaned
// markup is escaped like any other output.
func Sanitize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(sanitizer().Sanitize(trimmed))
}

func sanitizer() *bluemonday.Policy {
	ugcPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
		ugcPolicy = policy
	})
	return ugcPolicy
}

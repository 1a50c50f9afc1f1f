package services

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips unsafe markup from tutor responses before they are stored
// or sent to the browser.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &Sanitizer{policy: p}
}

func (s *Sanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}

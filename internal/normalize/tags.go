package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

var (
	slugRe = regexp.MustCompile(`[^a-z0-9]+`)

	contextCues = []struct {
		tag     string
		pattern *regexp.Regexp
	}{
		{"social", regexp.MustCompile(`(?i)\b(dinner|party|drinks|friends|birthday|treat|celebration|outing)\b`)},
		{"household-bill", regexp.MustCompile(`(?i)\b(electricity|water bill|gas|rent|wifi|internet|broadband|recharge|maintenance)\b`)},
		{"travel", regexp.MustCompile(`(?i)\b(cab|uber|ola|taxi|flight|train|metro|bus|auto)\b`)},
	}
)

// Slug lower-cases s and joins its alphanumeric runs with dashes.
func Slug(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// deriveTags returns the sorted, deduplicated tag set for a record.
func deriveTags(direction domain.Direction, category, text string, extra []string) []string {
	set := map[string]struct{}{
		string(direction): {},
	}
	if slug := Slug(category); slug != "" {
		set[slug] = struct{}{}
	}
	for _, cue := range contextCues {
		if cue.pattern.MatchString(text) {
			set[cue.tag] = struct{}{}
		}
	}
	for _, t := range extra {
		t = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t)), "|", "-")
		if t != "" {
			set[t] = struct{}{}
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

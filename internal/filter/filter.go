// Package filter compiles the digest filter language and applies it to feed
// entries. Tokens use a leading + (include) or - (exclude) with an optional
// quoted value:
//
//	+#VALUE / -#VALUE                 category
//	+author:VALUE / -author:VALUE     author substring
//	+summary-regex:V / -summary-regex:V
//	+summary:VALUE / -summary:VALUE   summary substring
//	remove:VALUE                      strip literal text from summaries
//	remove-regex:VALUE                strip regex matches from summaries
//
// Tokens are tested in that order, first match wins; anything unrecognized is
// dropped silently. All matching is case-insensitive.
package filter

import (
	"regexp"
	"strings"

	"github.com/digesthq/feed-digest/internal/domain"
)

// Config is the compiled form of a digest's filter list.
type Config struct {
	IncludeCategories   []string
	ExcludeCategories   []string
	IncludeAuthors      []string
	ExcludeAuthors      []string
	IncludeSummary      []string
	ExcludeSummary      []string
	IncludeSummaryRegex []string
	ExcludeSummaryRegex []string
	RemoveText          []string
	RemoveRegex         []string
}

type signedMatcher struct {
	re     *regexp.Regexp
	assign func(cfg *Config, include bool, value string)
}

type removalMatcher struct {
	re     *regexp.Regexp
	assign func(cfg *Config, value string)
}

var signedMatchers = []signedMatcher{
	{
		re: regexp.MustCompile(`^([+-])\s*#(?:"([^"]+)"|(.+))$`),
		assign: func(cfg *Config, include bool, value string) {
			if include {
				cfg.IncludeCategories = append(cfg.IncludeCategories, value)
			} else {
				cfg.ExcludeCategories = append(cfg.ExcludeCategories, value)
			}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^([+-])\s*author:(?:"([^"]+)"|(.+))$`),
		assign: func(cfg *Config, include bool, value string) {
			if include {
				cfg.IncludeAuthors = append(cfg.IncludeAuthors, value)
			} else {
				cfg.ExcludeAuthors = append(cfg.ExcludeAuthors, value)
			}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^([+-])\s*summary-regex:(?:"(.+)"|(.+))$`),
		assign: func(cfg *Config, include bool, value string) {
			if include {
				cfg.IncludeSummaryRegex = append(cfg.IncludeSummaryRegex, value)
			} else {
				cfg.ExcludeSummaryRegex = append(cfg.ExcludeSummaryRegex, value)
			}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^([+-])\s*summary:(?:"([^"]+)"|(.+))$`),
		assign: func(cfg *Config, include bool, value string) {
			if include {
				cfg.IncludeSummary = append(cfg.IncludeSummary, value)
			} else {
				cfg.ExcludeSummary = append(cfg.ExcludeSummary, value)
			}
		},
	},
}

var removalMatchers = []removalMatcher{
	{
		re: regexp.MustCompile(`(?i)^remove-regex:(?:"(.+)"|(.+))$`),
		assign: func(cfg *Config, value string) {
			cfg.RemoveRegex = append(cfg.RemoveRegex, value)
		},
	},
	{
		re: regexp.MustCompile(`(?i)^remove:(?:"([^"]+)"|(.+))$`),
		assign: func(cfg *Config, value string) {
			cfg.RemoveText = append(cfg.RemoveText, value)
		},
	},
}

// Compile turns raw filter strings into a Config. It never fails; empty or
// unrecognized tokens are discarded.
func Compile(filters []string) Config {
	var cfg Config

tokens:
	for _, raw := range filters {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}

		for _, m := range signedMatchers {
			if groups := m.re.FindStringSubmatch(token); groups != nil {
				value := strings.TrimSpace(firstNonEmptyGroup(groups[2], groups[3]))
				if value != "" {
					m.assign(&cfg, groups[1] == "+", value)
				}
				continue tokens
			}
		}

		for _, m := range removalMatchers {
			if groups := m.re.FindStringSubmatch(token); groups != nil {
				value := strings.TrimSpace(firstNonEmptyGroup(groups[1], groups[2]))
				if value != "" {
					m.assign(&cfg, value)
				}
				continue tokens
			}
		}
	}

	return cfg
}

func firstNonEmptyGroup(quoted, bare string) string {
	if quoted != "" {
		return quoted
	}
	return bare
}

// Apply returns the entries that survive the include/exclude rules, order
// preserved. Content removals are not applied here; see RemoveContent.
func (c Config) Apply(entries []domain.Entry) []domain.Entry {
	includeCategories := normalizeValues(c.IncludeCategories)
	excludeCategories := normalizeValues(c.ExcludeCategories)
	includeAuthors := normalizeValues(c.IncludeAuthors)
	excludeAuthors := normalizeValues(c.ExcludeAuthors)
	includeSummary := normalizeValues(c.IncludeSummary)
	excludeSummary := normalizeValues(c.ExcludeSummary)

	requireCategory := len(includeCategories) > 0
	requireAuthor := len(includeAuthors) > 0
	requireSummary := len(includeSummary) > 0 || len(c.IncludeSummaryRegex) > 0

	filtered := make([]domain.Entry, 0, len(entries))

	for _, entry := range entries {
		categories := make([]string, len(entry.Categories))
		for i, cat := range entry.Categories {
			categories[i] = strings.ToLower(cat)
		}
		author := strings.ToLower(entry.Author)
		summary := strings.ToLower(entry.Summary)

		if requireCategory && !matchesAny(categories, includeCategories) {
			continue
		}
		if len(excludeCategories) > 0 && matchesAny(categories, excludeCategories) {
			continue
		}
		if requireAuthor && !matchesTextAny(author, includeAuthors) {
			continue
		}
		if len(excludeAuthors) > 0 && matchesTextAny(author, excludeAuthors) {
			continue
		}
		if requireSummary && !matchesSummary(summary, includeSummary, c.IncludeSummaryRegex) {
			continue
		}
		if matchesSummary(summary, excludeSummary, c.ExcludeSummaryRegex) {
			continue
		}

		filtered = append(filtered, entry)
	}

	return filtered
}

// RemoveContent strips the configured literals and regex matches from a
// surviving entry's summary, in the order the filters were supplied.
func (c Config) RemoveContent(summary string) string {
	result := summary

	for _, value := range c.RemoveText {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(value))
		if err != nil {
			continue
		}
		result = re.ReplaceAllLiteralString(result, "")
	}

	for _, pattern := range c.RemoveRegex {
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			continue
		}
		result = re.ReplaceAllString(result, "")
	}

	return result
}

func normalizeValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func matchesAny(haystack, needles []string) bool {
	for _, needle := range needles {
		for _, value := range haystack {
			if strings.Contains(value, needle) {
				return true
			}
		}
	}
	return false
}

func matchesTextAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

func matchesSummary(summary string, terms, patterns []string) bool {
	if matchesTextAny(summary, terms) {
		return true
	}
	for _, pattern := range patterns {
		if matchesRegex(summary, pattern) {
			return true
		}
	}
	return false
}

// matchesRegex treats an invalid pattern as a non-match so one bad filter
// cannot break the whole digest.
func matchesRegex(text, pattern string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)` + pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

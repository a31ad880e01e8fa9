package ai

import (
	"regexp"
	"strings"
)

const maxTags = 7

var (
	ordinalPrefix = regexp.MustCompile(`^(\d+[.)]|[-•])\s*`)
	emphasis      = strings.NewReplacer("*", "", "#", "", "`", "", "\"", "")
)

// ParseTags normalizes a model's tag list. Entries may be separated by
// newlines or commas and may carry list ordinals, bullets or markdown
// emphasis, including emphasis wrapped around the ordinal. Underscores are
// trimmed only at the ends so snake_case survives. A "Here are the tags:"
// preamble is dropped up to its colon, blank and duplicate entries are
// discarded, and at most seven tags are kept.
func ParseTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ',' })

	tags := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if i == 0 {
			// "Tags:" on its own line or "Here are 6 tags: ai" inline.
			if _, rest, ok := strings.Cut(f, ":"); ok {
				f = rest
			}
		}
		f = strings.TrimSpace(emphasis.Replace(f))
		f = strings.TrimSpace(ordinalPrefix.ReplaceAllString(f, ""))
		f = strings.TrimSpace(strings.Trim(f, "_"))
		f = strings.TrimSuffix(f, ".")
		if f == "" {
			continue
		}
		key := strings.ToLower(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, f)
		if len(tags) == maxTags {
			break
		}
	}
	return tags
}

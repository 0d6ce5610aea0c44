package articles

import (
	"sort"
	"strings"
)

func Slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r == ' ':
			b.WriteByte('-')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseTags splits a space separated tag string into a sorted set.
func ParseTags(raw string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tag := range strings.Fields(raw) {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Package slug derives file-safe identifiers from keywords.
package slug

import "strings"

// Fallback is used by callers when Of returns an empty slug.
const Fallback = "untitled"

// Of lower-cases keyword and replaces every run of characters outside [0-9a-z] with a single
// hyphen, trimming hyphens at both ends. Non-ASCII letters act as separators. The result may be
// empty.
func Of(keyword string) string {
	lower := strings.ToLower(keyword)

	var b strings.Builder
	b.Grow(len(lower))
	sep := false
	for _, r := range lower {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') {
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(r)
			continue
		}
		sep = true
	}
	return b.String()
}

// OrFallback returns Of(keyword), or Fallback when that is empty.
func OrFallback(keyword string) string {
	if s := Of(keyword); s != "" {
		return s
	}
	return Fallback
}

package cheese

import (
	"fmt"

	"github.com/gosimple/slug"
)

const fallbackSlug = "cheese"

// reservedSlugs collide with fixed path segments under /cheeses/.
var reservedSlugs = map[string]bool{"add": true}

// Reserved reports whether s cannot be used as a cheese slug.
func Reserved(s string) bool { return reservedSlugs[s] }

// Slugify derives the URL identifier for a cheese name.
func Slugify(name string) string {
	s := slug.Make(name)
	if s == "" {
		return fallbackSlug
	}
	return s
}

// SlugCandidates returns base followed by base-2 ... base-n, leaving out
// reserved slugs.
func SlugCandidates(base string, n int) []string {
	out := make([]string, 0, n)
	if n <= 0 {
		return out
	}
	if !Reserved(base) {
		out = append(out, base)
	}
	for i := 2; i <= n; i++ {
		out = append(out, fmt.Sprintf("%s-%d", base, i))
	}
	return out
}

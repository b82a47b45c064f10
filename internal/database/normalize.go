package database

import (
	"regexp"
	"strings"
)

// normalizeName folds whitespace and casing so tag variants like
// "The Beatles", "the  beatles", "THE BEATLES" dedup to one artist row
// instead of three. Only used for the lookup key; the originally-seen
// casing is still what gets stored and returned to callers.
var collapseSpaceRe = regexp.MustCompile(`\s+`)

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = collapseSpaceRe.ReplaceAllString(name, " ")
	return strings.ToLower(name)
}

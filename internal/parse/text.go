package parse

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	nonSlugRe   = regexp.MustCompile(`[^a-z0-9]+`)
	hyphenRunRe = regexp.MustCompile(`-+`)
)

// Fold lowercases s and strips diacritics, so "Miércoles" becomes "miercoles".
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DisplayName collapses runs of whitespace in a name coming from an upstream system.
func DisplayName(raw string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(raw, " "))
}

// Slug turns free text into a catalog slug made of [a-z0-9-]. It returns "" when nothing usable is left.
func Slug(raw string) string {
	s := nonSlugRe.ReplaceAllString(Fold(raw), "-")
	s = hyphenRunRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

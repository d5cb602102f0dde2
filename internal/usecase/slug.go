package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugRunes = 80

// slugify folds accents and keeps letters and digits of any script.
func slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	dash := false
	n := 0
	for _, r := range strings.ToLower(folded) {
		if n >= maxSlugRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			n++
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
			n++
		}
	}
	return strings.Trim(b.String(), "-")
}

// articleSlug makes the slug unique by suffixing part of the article id.
func articleSlug(title, articleID string) string {
	suffix := strings.ReplaceAll(articleID, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	base := slugify(title)
	if base == "" {
		return "news-" + suffix
	}
	return base + "-" + suffix
}

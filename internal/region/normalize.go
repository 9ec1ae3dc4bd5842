package region

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// adminSuffixes lists administrative suffixes stripped during cleaning.
var adminSuffixes = []string{
	" governorate",
	" province",
	" gov",
}

// adminPrefixes lists administrative prefixes stripped during cleaning.
var adminPrefixes = []string{
	"muhafazat ",
	"muhafazah ",
	"governorate of ",
	"province of ",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

var punctReplacer = strings.NewReplacer(
	"_", " ",
	"-", " ",
	",", "",
	".", "",
	"\"", "",
	"(", " ",
	")", " ",
	"`", "'",
)

// Clean standardizes a raw region name for gazetteer lookup by:
//  1. Trimming whitespace
//  2. Stripping diacritics (NFD decomposition, combining marks removed)
//  3. Transliterating remaining non-ASCII script to ASCII
//  4. Lowercasing
//  5. Collapsing separators (underscores, dashes, whitespace) to single spaces
//  6. Removing administrative affixes ("governorate", "muhafazat", etc.)
//
// Apostrophes are kept; canonical identifiers like "sana'a" depend on them.
func Clean(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	// Strip combining marks, then transliterate whatever is left.
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range norm.NFD.String(name) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	name = unidecode.Unidecode(b.String())

	name = strings.ToLower(name)
	name = punctReplacer.Replace(name)
	name = multiSpaceRe.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	for _, prefix := range adminPrefixes {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			break
		}
	}
	for _, suffix := range adminSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	return strings.TrimSpace(name)
}

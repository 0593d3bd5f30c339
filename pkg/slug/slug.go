package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// diacritics maps common accented Latin characters to their ASCII
// equivalents so product names slug cleanly regardless of locale.
var diacritics = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"ç", "c", "è", "e", "é", "e", "ê", "e", "ë", "e",
	"ì", "i", "í", "i", "î", "i", "ï", "i", "ı", "i",
	"ñ", "n", "ò", "o", "ó", "o", "ô", "o", "ö", "o", "õ", "o",
	"ù", "u", "ú", "u", "û", "u", "ü", "u",
	"ý", "y", "ğ", "g", "ş", "s", "ß", "ss",
)

// Generate creates a URL-friendly slug from the given name.
//
// Examples:
//   - "Wireless Mouse Pro" -> "wireless-mouse-pro"
//   - "Café Crème" -> "cafe-creme"
//   - "Hello   World!" -> "hello-world"
func Generate(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = diacritics.Replace(slug)

	// Everything that is not a lowercase letter or digit collapses into a
	// single hyphen, so runs of punctuation never produce "--".
	slug = nonAlnum.ReplaceAllString(slug, "-")

	return strings.Trim(slug, "-")
}

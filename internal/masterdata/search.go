package masterdata

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeSearch lowercases s and strips diacritics so accented names match
// unaccented queries. Names like "Trần Hương" match the query "tran huong".
func NormalizeSearch(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	// đ/Đ carry no combining mark, NFD leaves them alone.
	folded = strings.ReplaceAll(folded, "đ", "d")
	folded = strings.ReplaceAll(folded, "Đ", "D")
	return strings.ToLower(strings.TrimSpace(folded))
}

// Package normalize holds the pure string functions behind entity
// resolution: name normalization, legal-suffix stripping for companies, and
// the 0-100 fuzzy similarity score.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists common legal entity suffixes stripped during company
// name normalization. Entries are matched case-insensitively at the end of
// the already-normalized name.
var legalSuffixes = []string{
	" llc", " l l c",
	" inc", " incorporated",
	" corp", " corporation",
	" ltd", " limited",
	" lp", " l p",
	" llp", " l l p",
	" co",
	" plc",
	" dba", " d b a",
	" pllc",
	" company",
}

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	foldT        = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Name standardizes a personal or company name for matching:
//  1. Trim and lowercase
//  2. Fold diacritics (José -> jose)
//  3. Strip punctuation (ampersand becomes "and")
//  4. Collapse runs of whitespace
func Name(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	if folded, _, err := transform.String(foldT, s); err == nil {
		s = folded
	}

	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "-", " ")
	s = punctRe.ReplaceAllString(s, "")

	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Company applies Name normalization and removes a trailing legal suffix, so
// "ABC Supply Co" and "ABC Supply Inc." both normalize to "abc supply".
func Company(s string) string {
	n := Name(s)
	if n == "" {
		return ""
	}

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(n, suffix) {
			n = strings.TrimSuffix(n, suffix)
			break
		}
	}
	return strings.TrimSpace(n)
}

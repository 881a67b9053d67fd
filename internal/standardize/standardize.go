// Package standardize normalizes names and codes for tolerant comparison
// against tax-authority catalogs. The authority compares legal names ignoring
// case, diacritics and whitespace runs; a cosmetic mismatch must not be
// reported as a fault.
package standardize

import (
	"strings"
	"unicode"
)

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U",
	"à", "a", "è", "e", "ì", "i", "ò", "o", "ù", "u",
	"À", "A", "È", "E", "Ì", "I", "Ò", "O", "Ù", "U",
	"ñ", "n", "Ñ", "N",
)

// Fold returns the canonical comparison form of a string: uppercased, with
// diacritics stripped and whitespace runs collapsed to a single space.
func Fold(s string) string {
	s = accentReplacer.Replace(s)
	s = strings.ToUpper(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// Equal reports whether two strings are equal under Fold
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

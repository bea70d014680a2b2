// Package textnorm lower-cases text the same way for lookups and search so
// that composed and decomposed forms of the same name compare equal.
package textnorm

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Lower returns s in NFC form, lower-cased with language-neutral rules.
// A Caser is stateful, so each call gets its own.
func Lower(s string) string {
	if s == "" {
		return ""
	}
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// Key trims s and lowers it; an all-space input yields "".
func Key(s string) string {
	return Lower(strings.TrimSpace(s))
}

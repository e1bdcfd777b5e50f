package validator

import (
	"html"
	"reflect"
	"strings"
)

func jsonTagName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// EscapeText trims s and escapes the characters that are unsafe inside
// HTML text or attributes: & < > " '.
func EscapeText(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// SanitizeEmail drops every character that cannot appear in an email
// address: anything other than ASCII letters, digits and
// !#$%&'*+-=?^_`{|}~@.[]
func SanitizeEmail(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isEmailRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isEmailRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("!#$%&'*+-=?^_`{|}~@.[]", r)
}

// DigitsOnly keeps the decimal digits of s, the filter applied to every
// id taken from a request path.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

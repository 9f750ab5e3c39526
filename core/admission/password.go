package admission

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/admissions/core/wizard"
)

// password policy
const pwdMaxSim = .7

func NoWhitespace(label string) wizard.Validator {
	return func(value interface{}, _ wizard.Values) string {
		s, _ := value.(string)
		if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
			return label + " must not contain whitespace"
		}
		return ""
	}
}

func NotAllNumeric(label string) wizard.Validator {
	return func(value interface{}, _ wizard.Values) string {
		s, _ := value.(string)
		if s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
			return label + " cannot be entirely numeric"
		}
		return ""
	}
}

// NotSimilarTo fails when the value is too similar to any of the given draft fields (names, email...).
// The local part of email addresses is compared, not the domain.
func NotSimilarTo(label string, fields ...string) wizard.Validator {
	return func(value interface{}, draft wizard.Values) string {
		pwd, _ := value.(string)
		pwd = strings.ToLower(pwd)
		if pwd == "" {
			return ""
		}
		for _, name := range fields {
			attr := strings.ToLower(strings.TrimSpace(draft.String(name)))
			if i := strings.Index(attr, "@"); i > 0 {
				attr = attr[:i]
			}
			if similarity(pwd, attr) >= pwdMaxSim {
				return label + " is too similar to your personal information"
			}
		}
		return ""
	}
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).QuickRatio()
}

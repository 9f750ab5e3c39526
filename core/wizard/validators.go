package wizard

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Validator tests one concern of a field value, the full draft is available for cross-field checks.
// It returns "" when the value is valid, otherwise a message for the user.
// Validators must be pure and must not panic.
type Validator func(value interface{}, draft Values) string

var (
	emailRegex       = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRwandaRegex = regexp.MustCompile(`^(\+250|250|0)?7[238]\d{7}$`)

	nowFunc = time.Now // mockable
)

// Run applies validators in order and returns the first error.
func Run(validators []Validator, value interface{}, draft Values) string {
	for _, validate := range validators {
		if msg := validate(value, draft); msg != "" {
			return msg
		}
	}
	return ""
}

// IsBlank reports whether value counts as "not provided".
// An unticked checkbox (false) is blank.
func IsBlank(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case time.Time:
		return v.IsZero()
	case *time.Time:
		return v == nil || v.IsZero()
	case bool:
		return !v
	case FileHandle:
		return v.IsZero()
	case *FileHandle:
		return v == nil || v.IsZero()
	default:
		return false
	}
}

func Required(label string) Validator {
	return func(value interface{}, _ Values) string {
		if IsBlank(value) {
			return label + " is required"
		}
		return ""
	}
}

func Email() Validator {
	required := Required("Email")
	return func(value interface{}, draft Values) string {
		if msg := required(value, draft); msg != "" {
			return msg
		}
		if !emailRegex.MatchString(strings.TrimSpace(toString(value))) {
			return "Please enter a valid email address"
		}
		return ""
	}
}

// PhoneRwanda accepts MTN/Airtel subscriber numbers (72, 73, 78)
// with an optional +250, 250 or 0 prefix. Whitespace is ignored.
func PhoneRwanda() Validator {
	return func(value interface{}, _ Values) string {
		phone := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, toString(value))
		if !phoneRwandaRegex.MatchString(phone) {
			return "Please enter a valid Rwandan phone number (e.g. +250 78X XXX XXX)"
		}
		return ""
	}
}

func MinLength(n int, label string) Validator {
	return func(value interface{}, _ Values) string {
		if utf8.RuneCountInString(strings.TrimSpace(toString(value))) < n {
			return fmt.Sprintf("%s must be at least %d characters", label, n)
		}
		return ""
	}
}

func MaxLength(n int, label string) Validator {
	return func(value interface{}, _ Values) string {
		if utf8.RuneCountInString(strings.TrimSpace(toString(value))) > n {
			return fmt.Sprintf("%s must be at most %d characters", label, n)
		}
		return ""
	}
}

// MatchesField fails unless value equals the draft value of otherField.
func MatchesField(otherField, label string) Validator {
	return func(value interface{}, draft Values) string {
		if !reflect.DeepEqual(value, draft.Get(otherField)) {
			return label + " does not match"
		}
		return ""
	}
}

// OneOf fails unless value is one of the enum tags in choices.
func OneOf(label string, choices ...string) Validator {
	return func(value interface{}, _ Values) string {
		s := toString(value)
		for _, c := range choices {
			if s == c {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(choices, ", "))
	}
}

// PastDate fails if the date is not strictly before today. Blank dates pass, pair it with Required.
func PastDate(label string) Validator {
	return func(value interface{}, _ Values) string {
		t, ok := value.(time.Time)
		if !ok {
			if IsBlank(value) {
				return ""
			}
			return label + " is not a valid date"
		}
		if t.IsZero() {
			return ""
		}
		y, m, d := nowFunc().Date()
		today := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		if !t.Before(today) {
			return label + " must be in the past"
		}
		return ""
	}
}

// Accepted fails unless value is true, for declarations and terms checkboxes.
func Accepted(label string) Validator {
	return func(value interface{}, _ Values) string {
		if b, ok := value.(bool); !ok || !b {
			return "You must accept the " + label
		}
		return ""
	}
}

func Pattern(re *regexp.Regexp, message string) Validator {
	return func(value interface{}, _ Values) string {
		if !re.MatchString(toString(value)) {
			return message
		}
		return ""
	}
}

// Optional runs validators only when value is not blank.
func Optional(validators ...Validator) Validator {
	return func(value interface{}, draft Values) string {
		if IsBlank(value) {
			return ""
		}
		return Run(validators, value, draft)
	}
}

package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DateLayout is the wire format of date fields.
const DateLayout = "2006-01-02"

// Kind is the type of value a field holds.
type Kind string

const (
	KindText Kind = "text"
	KindEnum Kind = "enum"
	KindDate Kind = "date"
	KindBool Kind = "bool"
	KindFile Kind = "file"
)

var (
	ErrInvalidSteps = errors.New("invalid steps")
	ErrBadValue     = errors.New("bad value")
)

// Field declares one draft field owned by a step.
type Field struct {
	Name       string
	Label      string
	Kind       Kind
	Choices    []string // enum tags
	Secret     bool     // masked in State
	Validators []Validator
}

// Parse converts a raw (decoded JSON) value into the draft value type of the field.
// nil clears the field.
func (f Field) Parse(raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindDate:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			if strings.TrimSpace(v) == "" {
				return time.Time{}, nil
			}
			t, err := time.Parse(DateLayout, strings.TrimSpace(v))
			if err != nil {
				return nil, errors.Wrapf(ErrBadValue, "%s: expected a date as YYYY-MM-DD", f.Name)
			}
			return t, nil
		}
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			if v == "on" {
				return true, nil
			}
			if v == "" {
				return false, nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errors.Wrapf(ErrBadValue, "%s: expected a boolean", f.Name)
			}
			return b, nil
		}
	case KindFile:
		if fh, ok := raw.(FileHandle); ok {
			return fh, nil
		}
		return nil, errors.Wrapf(ErrBadValue, "%s: files must be uploaded", f.Name)
	default: // text & enum
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case int, int64, bool:
			return fmt.Sprint(v), nil
		}
	}
	return nil, errors.Wrapf(ErrBadValue, "%s: unexpected %T", f.Name, raw)
}

// Step is one page of a wizard. Steps are immutable once handed to a Wizard.
type Step struct {
	Order  int
	Title  string
	Fields []Field
}

func (s Step) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Validate runs every field's validators against draft, in declared order.
// All fields are checked; the result maps field names to their first error.
func (s Step) Validate(draft Values) map[string]string {
	errs := make(map[string]string)
	for _, f := range s.Fields {
		if msg := Run(f.Validators, draft.Get(f.Name), draft); msg != "" {
			errs[f.Name] = msg
		}
	}
	return errs
}

func (s Step) clone() Step {
	c := Step{Order: s.Order, Title: s.Title, Fields: make([]Field, len(s.Fields))}
	for i, f := range s.Fields {
		f.Choices = append([]string(nil), f.Choices...)
		f.Validators = append([]Validator(nil), f.Validators...)
		if f.Kind == "" {
			f.Kind = KindText
		}
		c.Fields[i] = f
	}
	return c
}

// CheckSteps reports why steps cannot configure a wizard, if they can't.
func CheckSteps(steps []Step) error {
	if len(steps) == 0 {
		return errors.Wrap(ErrInvalidSteps, "no steps")
	}
	owners := make(map[string]int)
	for i, s := range steps {
		if s.Order != i+1 {
			return errors.Wrapf(ErrInvalidSteps, "step %q has order %d, want %d", s.Title, s.Order, i+1)
		}
		if len(s.Fields) == 0 {
			return errors.Wrapf(ErrInvalidSteps, "step %d has no fields", s.Order)
		}
		for _, f := range s.Fields {
			if f.Name == "" {
				return errors.Wrapf(ErrInvalidSteps, "step %d has an unnamed field", s.Order)
			}
			if owner, ok := owners[f.Name]; ok {
				return errors.Wrapf(ErrInvalidSteps, "field %q is owned by steps %d and %d", f.Name, owner, s.Order)
			}
			owners[f.Name] = s.Order
		}
	}
	return nil
}

func cloneSteps(steps []Step) []Step {
	c := make([]Step, len(steps))
	for i, s := range steps {
		c[i] = s.clone()
	}
	return c
}

package wizard

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrBadRule = errors.New("bad rule")

type (
	// Definition describes a wizard in YAML:
	//
	//	name: scholarship
	//	title: Scholarship request
	//	steps:
	//	  - title: Student
	//	    fields:
	//	      - {name: fullName, label: Full name, rules: [required, "min=3"]}
	Definition struct {
		Name  string           `yaml:"name" validate:"required,fieldname"`
		Title string           `yaml:"title" validate:"required,notblank"`
		Steps []StepDefinition `yaml:"steps" validate:"required,min=1,dive"`
	}

	StepDefinition struct {
		Title  string            `yaml:"title" validate:"required,notblank"`
		Fields []FieldDefinition `yaml:"fields" validate:"required,min=1,dive"`
	}

	FieldDefinition struct {
		Name    string   `yaml:"name" validate:"required,fieldname"`
		Label   string   `yaml:"label" validate:"required,notblank"`
		Type    Kind     `yaml:"type" validate:"omitempty,oneof=text enum date bool file"`
		Choices []string `yaml:"choices" validate:"required_if=Type enum,dive,required"`
		Secret  bool     `yaml:"secret"`
		Rules   []string `yaml:"rules" validate:"dive,required"`
	}
)

// ParseDefinition decodes and validates a YAML wizard definition.
// validate must have the core custom tags registered.
func ParseDefinition(data []byte, validate *validator.Validate) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, "decoding definition")
	}
	if err := validate.Struct(def); err != nil {
		return nil, errors.Wrap(err, "validating definition")
	}
	return &def, nil
}

// LoadDefinitions parses every *.yaml and *.yml file of dir, sorted by file name.
// A missing dir yields no definitions.
func LoadDefinitions(dir string, validate *validator.Validate) ([]*Definition, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var fps []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, errors.Wrap(err, "listing definitions")
		}
		fps = append(fps, matches...)
	}
	sort.Strings(fps)

	defs := make([]*Definition, 0, len(fps))
	for _, fp := range fps {
		data, err := os.ReadFile(fp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", fp)
		}
		def, err := ParseDefinition(data, validate)
		if err != nil {
			return nil, errors.WithMessage(err, filepath.Base(fp))
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Compile turns the definition into wizard steps.
func (d *Definition) Compile() ([]Step, error) {
	names := make(map[string]bool)
	for _, sd := range d.Steps {
		for _, fd := range sd.Fields {
			names[fd.Name] = true
		}
	}

	steps := make([]Step, 0, len(d.Steps))
	for i, sd := range d.Steps {
		step := Step{Order: i + 1, Title: sd.Title}
		for _, fd := range sd.Fields {
			f := Field{
				Name:    fd.Name,
				Label:   fd.Label,
				Kind:    fd.Type,
				Choices: fd.Choices,
				Secret:  fd.Secret,
			}
			if f.Kind == "" {
				f.Kind = KindText
			}
			validators, err := compileRules(f, fd.Rules, names)
			if err != nil {
				return nil, errors.WithMessagef(err, "%s.%s", d.Name, fd.Name)
			}
			f.Validators = validators
			step.Fields = append(step.Fields, f)
		}
		steps = append(steps, step)
	}
	if err := CheckSteps(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// compileRules maps rule strings to validators. Rules after "optional" only run on non-blank values.
func compileRules(f Field, rules []string, names map[string]bool) ([]Validator, error) {
	var (
		validators []Validator
		optional   []Validator
		isOptional bool
	)
	for _, rule := range rules {
		name, arg := rule, ""
		if i := strings.Index(rule, "="); i >= 0 {
			name, arg = rule[:i], rule[i+1:]
		}

		var v Validator
		switch name {
		case "optional":
			isOptional = true
			continue
		case "required":
			v = Required(f.Label)
		case "email":
			v = Email()
		case "phone_rw":
			v = PhoneRwanda()
		case "min", "max":
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return nil, errors.Wrapf(ErrBadRule, "%q needs a length", rule)
			}
			if name == "min" {
				v = MinLength(n, f.Label)
			} else {
				v = MaxLength(n, f.Label)
			}
		case "matches":
			if !names[arg] || arg == f.Name {
				return nil, errors.Wrapf(ErrBadRule, "%q refers to an unknown field", rule)
			}
			v = MatchesField(arg, f.Label)
		case "oneof":
			choices := f.Choices
			if arg != "" {
				choices = strings.Fields(arg)
			}
			if len(choices) == 0 {
				return nil, errors.Wrapf(ErrBadRule, "%q has no choices", rule)
			}
			v = OneOf(f.Label, choices...)
		case "past_date":
			v = PastDate(f.Label)
		case "accepted":
			v = Accepted(f.Label)
		default:
			return nil, errors.Wrapf(ErrBadRule, "unknown rule %q", rule)
		}

		if isOptional {
			optional = append(optional, v)
		} else {
			validators = append(validators, v)
		}
	}
	if len(optional) > 0 {
		validators = append(validators, Optional(optional...))
	}
	return validators, nil
}

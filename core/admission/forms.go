// Package admission holds the school's own wizards: the admissions application and the contact form.
package admission

import (
	"regexp"

	"github.com/trezcool/admissions/core/wizard"
)

const (
	ApplyForm   = "apply"
	ContactForm = "contact"
)

var (
	Genders       = []string{"male", "female"}
	Relationships = []string{"father", "mother", "guardian"}
	Grades        = []string{"S1", "S2", "S3", "S4", "S5", "S6"}

	// A-level combinations look like "PCM" or "MEG".
	combinationRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

func required(name, label string, kind wizard.Kind, more ...wizard.Validator) wizard.Field {
	return wizard.Field{
		Name:       name,
		Label:      label,
		Kind:       kind,
		Validators: append([]wizard.Validator{wizard.Required(label)}, more...),
	}
}

func enum(name, label string, choices []string) wizard.Field {
	f := required(name, label, wizard.KindEnum, wizard.OneOf(label, choices...))
	f.Choices = choices
	return f
}

// ApplySteps returns the 4 steps of the admissions application.
func ApplySteps() []wizard.Step {
	return []wizard.Step{
		{
			Order: 1, Title: "Student Information",
			Fields: []wizard.Field{
				required("firstName", "First Name", wizard.KindText, wizard.MaxLength(50, "First Name")),
				required("lastName", "Last Name", wizard.KindText, wizard.MaxLength(50, "Last Name")),
				enum("gender", "Gender", Genders),
				required("dateOfBirth", "Date of Birth", wizard.KindDate, wizard.PastDate("Date of Birth")),
				required("nationality", "Nationality", wizard.KindText),
			},
		},
		{
			Order: 2, Title: "Parent / Guardian",
			Fields: []wizard.Field{
				required("parentName", "Parent Name", wizard.KindText),
				{Name: "parentEmail", Label: "Parent Email", Kind: wizard.KindText, Validators: []wizard.Validator{wizard.Email()}},
				{Name: "parentPhone", Label: "Parent Phone", Kind: wizard.KindText, Validators: []wizard.Validator{
					wizard.Required("Parent Phone"), wizard.PhoneRwanda(),
				}},
				required("address", "Address", wizard.KindText, wizard.MaxLength(200, "Address")),
				enum("relationship", "Relationship", Relationships),
			},
		},
		{
			Order: 3, Title: "Academic Background",
			Fields: []wizard.Field{
				required("previousSchool", "Previous School", wizard.KindText),
				enum("gradeApplying", "Grade Applying For", Grades),
				{Name: "combination", Label: "Combination", Kind: wizard.KindText, Validators: []wizard.Validator{
					wizard.Optional(wizard.Pattern(combinationRegex, "Combination must be 3 capital letters (e.g. PCM)")),
				}},
				required("reportCard", "Report Card", wizard.KindFile),
			},
		},
		{
			Order: 4, Title: "Account & Declaration",
			Fields: []wizard.Field{
				{Name: "email", Label: "Email", Kind: wizard.KindText, Validators: []wizard.Validator{wizard.Email()}},
				{Name: "password", Label: "Password", Kind: wizard.KindText, Secret: true, Validators: []wizard.Validator{
					wizard.Required("Password"),
					wizard.MinLength(8, "Password"),
					NoWhitespace("Password"),
					NotAllNumeric("Password"),
					NotSimilarTo("Password", "firstName", "lastName", "email"),
				}},
				{Name: "confirmPassword", Label: "Confirm Password", Kind: wizard.KindText, Secret: true, Validators: []wizard.Validator{
					wizard.Required("Confirm Password"), wizard.MatchesField("password", "Confirm Password"),
				}},
				{Name: "agreeTerms", Label: "terms and conditions", Kind: wizard.KindBool, Validators: []wizard.Validator{
					wizard.Accepted("terms and conditions"),
				}},
			},
		},
	}
}

// ContactSteps returns the single step of the contact form.
func ContactSteps() []wizard.Step {
	return []wizard.Step{{
		Order: 1, Title: "Contact Us",
		Fields: []wizard.Field{
			required("name", "Name", wizard.KindText),
			{Name: "email", Label: "Email", Kind: wizard.KindText, Validators: []wizard.Validator{wizard.Email()}},
			{Name: "phone", Label: "Phone Number", Kind: wizard.KindText, Validators: []wizard.Validator{
				wizard.Optional(wizard.PhoneRwanda()),
			}},
			required("subject", "Subject", wizard.KindText, wizard.MaxLength(120, "Subject")),
			required("message", "Message", wizard.KindText, wizard.MinLength(10, "Message"), wizard.MaxLength(2000, "Message")),
		},
	}}
}

// Register adds the built-in forms to reg, both submitted through gateway.
func Register(reg *wizard.Registry, gateway wizard.Gateway) error {
	forms := []wizard.Form{
		{Name: ApplyForm, Title: "Apply for Admission", Steps: ApplySteps(), Gateway: gateway},
		{Name: ContactForm, Title: "Contact Us", Steps: ContactSteps(), Gateway: gateway},
	}
	for _, f := range forms {
		if err := reg.Register(f); err != nil {
			return err
		}
	}
	return nil
}

package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/wizard"
)

// Gateway is a recording wizard.Gateway.
// Set Err to make submissions fail, and Block to hold them until it is closed.
type Gateway struct {
	mu          sync.Mutex
	Err         error
	Block       chan struct{}
	Started     chan struct{} // receives once per submission, if set
	submissions []wizard.Values
	forms       []string
}

var _ wizard.Gateway = (*Gateway)(nil)

func (g *Gateway) Submit(ctx context.Context, form string, draft wizard.Values) (wizard.Receipt, error) {
	if g.Started != nil {
		g.Started <- struct{}{}
	}
	if g.Block != nil {
		select {
		case <-g.Block:
		case <-ctx.Done():
			return wizard.Receipt{}, errors.Wrap(ctx.Err(), "waiting for gateway")
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.submissions = append(g.submissions, draft)
	g.forms = append(g.forms, form)
	if g.Err != nil {
		return wizard.Receipt{}, g.Err
	}
	return wizard.Receipt{ID: uuid.New().String()}, nil
}

func (g *Gateway) SetErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Err = err
}

// Submissions returns the drafts received so far.
func (g *Gateway) Submissions() []wizard.Values {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]wizard.Values(nil), g.submissions...)
}

func (g *Gateway) Forms() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.forms...)
}

// NewValidate returns a validator with the app's custom tags & translations.
func NewValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	return validate, translator
}

// Steps returns a small 3-step wizard configuration:
// 1. name & email, 2. phone & birth date, 3. password, confirmation & terms.
func Steps() []wizard.Step {
	return []wizard.Step{
		{
			Order: 1, Title: "Identity",
			Fields: []wizard.Field{
				{Name: "name", Label: "Name", Validators: []wizard.Validator{wizard.Required("Name")}},
				{Name: "email", Label: "Email", Validators: []wizard.Validator{wizard.Email()}},
			},
		},
		{
			Order: 2, Title: "Contact",
			Fields: []wizard.Field{
				{Name: "phone", Label: "Phone", Validators: []wizard.Validator{wizard.PhoneRwanda()}},
				{Name: "dateOfBirth", Label: "Date of Birth", Kind: wizard.KindDate, Validators: []wizard.Validator{
					wizard.Required("Date of Birth"), wizard.PastDate("Date of Birth"),
				}},
				{Name: "document", Label: "Document", Kind: wizard.KindFile},
			},
		},
		{
			Order: 3, Title: "Account",
			Fields: []wizard.Field{
				{Name: "password", Label: "Password", Secret: true, Validators: []wizard.Validator{
					wizard.Required("Password"), wizard.MinLength(8, "Password"),
				}},
				{Name: "confirmPassword", Label: "Confirm Password", Secret: true, Validators: []wizard.Validator{
					wizard.Required("Confirm Password"), wizard.MatchesField("password", "Confirm Password"),
				}},
				{Name: "agreeTerms", Label: "Terms", Kind: wizard.KindBool, Validators: []wizard.Validator{wizard.Accepted("Terms")}},
			},
		},
	}
}

// Fill sets every value of values on w.
func Fill(t *testing.T, w *wizard.Wizard, values wizard.Values) {
	t.Helper()
	for name, val := range values {
		if err := w.SetField(name, val); err != nil {
			t.Fatalf("SetField(%s) failed: %v", name, err)
		}
	}
}

// Next advances w and fails the test if it did not move.
func Next(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	moved, err := w.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	if !moved {
		t.Fatalf("Next() did not move; errors %v", w.Errors())
	}
}

// Logger is a core.Logger recording every message, prefixed with its level.
type Logger struct {
	mu   sync.Mutex
	msgs []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, level+": "+msg)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { panic(fmt.Sprintf("FATAL: %s", msg)) }

func (l *Logger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

// Config returns a valid TEST configuration pointing at the repository's assets.
func Config(t *testing.T) *core.Config {
	t.Helper()
	wd, err := core.Getwd()
	if err != nil {
		t.Fatalf("Getwd() failed: %v", err)
	}
	return &core.Config{
		Env:             "TEST",
		Build:           "test",
		Debug:           true,
		TestMode:        true,
		AppName:         "Admissions",
		WorkDir:         wd,
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			Host:            ":0",
			DebugHost:       ":0",
			ShutdownTimeout: time.Second,
			AllowOrigins:    []string{"*"},
		},
		Email: core.EmailConfig{
			DefaultFrom:     "Admissions <noreply@school.test>",
			AdmissionsInbox: "admissions@school.test",
			TemplatesDir:    filepath.Join(wd, "assets", "templates", "email"),
		},
		Gateway: core.GatewayConfig{Kind: "simulated", SimulatedDelay: 10 * time.Millisecond},
		Wizard: core.WizardConfig{
			DefinitionsDir: filepath.Join(wd, "assets", "wizards"),
			SessionTTL:     time.Hour,
			UploadTick:     time.Millisecond,
		},
	}
}

// EmailTemplates parses the email templates of conf in strict mode.
func EmailTemplates(t *testing.T, conf *core.Config) *core.EmailTemplates {
	t.Helper()
	tmpls, err := core.ParseEmailTemplates(conf.Email.TemplatesDir, conf.FrontendBaseURL, true)
	if err != nil {
		t.Fatalf("ParseEmailTemplates() failed: %v", err)
	}
	return tmpls
}

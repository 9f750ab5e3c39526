package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string `validate:"oneof=DEV TEST QA PROD"`
		Build    string
		Debug    bool
		TestMode bool
		AppName  string `validate:"required"`
		WorkDir  string `validate:"required"`

		FrontendBaseURL string `validate:"omitempty,url"`
		RollbarToken    string

		Server  ServerConfig
		Email   EmailConfig
		Gateway GatewayConfig
		Wizard  WizardConfig
	}

	ServerConfig struct {
		Host            string        `validate:"required"`
		DebugHost       string        `validate:"required"`
		ShutdownTimeout time.Duration `validate:"gt=0"`
		AllowOrigins    []string
	}

	EmailConfig struct {
		DefaultFrom     string `validate:"required"`
		AdmissionsInbox string `validate:"required,email"`
		SendgridApiKey  string
		TemplatesDir    string `validate:"required"`
	}

	GatewayConfig struct {
		Kind           string        `validate:"oneof=simulated email"`
		SimulatedDelay time.Duration `validate:"gt=0,lte=30s"`
	}

	WizardConfig struct {
		DefinitionsDir string
		SessionTTL     time.Duration `validate:"gt=0"`
		UploadTick     time.Duration `validate:"gt=0"`
	}
)

// DefaultFromEmail parses the configured sender address,
// falling back to a bare address if it cannot be parsed.
func (c *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(c.Email.DefaultFrom); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.Email.DefaultFrom}
}

func (c *Config) AdmissionsInbox() mail.Address {
	return mail.Address{Name: c.AppName + " Admissions", Address: c.Email.AdmissionsInbox}
}

// NewConfig loads the configuration of the current ENV from defaults,
// an optional config/.env.<env> file and the environment.
func NewConfig() (*Config, error) {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	wd, err := Getwd()
	if err != nil {
		return nil, err
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Admissions")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverAllowOrigins", []string{"http://localhost:3000"})
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("admissionsInbox", "admissions@localhost.test")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("emailTemplatesDir", filepath.Join(wd, "assets", "templates", "email"))
	v.SetDefault("gateway", "simulated")
	v.SetDefault("gatewaySimulatedDelay", 2*time.Second)
	v.SetDefault("wizardDefinitionsDir", filepath.Join(wd, "assets", "wizards"))
	v.SetDefault("wizardSessionTTL", 2*time.Hour)
	v.SetDefault("wizardUploadTick", 200*time.Millisecond)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.SetEnvPrefix(env)
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        env == "TEST",
		AppName:         v.GetString("appName"),
		WorkDir:         wd,
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
			AllowOrigins:    v.GetStringSlice("serverAllowOrigins"),
		},
		Email: EmailConfig{
			DefaultFrom:     v.GetString("defaultFromEmail"),
			AdmissionsInbox: v.GetString("admissionsInbox"),
			SendgridApiKey:  v.GetString("sendgridApiKey"),
			TemplatesDir:    v.GetString("emailTemplatesDir"),
		},
		Gateway: GatewayConfig{
			Kind:           v.GetString("gateway"),
			SimulatedDelay: v.GetDuration("gatewaySimulatedDelay"),
		},
		Wizard: WizardConfig{
			DefinitionsDir: v.GetString("wizardDefinitionsDir"),
			SessionTTL:     v.GetDuration("wizardSessionTTL"),
			UploadTick:     v.GetDuration("wizardUploadTick"),
		},
	}
	if err := validator.New().Struct(conf); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return conf, nil
}

package dig_container

import (
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/admissions/apps/api/echo"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/session"
	"github.com/trezcool/admissions/core/wizard"
	"github.com/trezcool/admissions/services/analytics"
	emailsvc "github.com/trezcool/admissions/services/email"
	gatewaysvc "github.com/trezcool/admissions/services/gateway"
	logsvc "github.com/trezcool/admissions/services/logger"
	"github.com/trezcool/admissions/storage/inmem"
)

const (
	sweepEvery          = time.Minute
	analyticsFlushEvery = 5 * time.Minute
)

type WizardLoggerParam struct {
	dig.In
	Logger core.Logger `name:"wizardLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(os.Stdout, "API", conf)
}

func newWizardLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(os.Stdout, "WIZARD", conf)
}

func newValidate() *validator.Validate {
	return validator.New()
}

func newEmailTemplates(conf *core.Config) (*core.EmailTemplates, error) {
	return core.ParseEmailTemplates(conf.Email.TemplatesDir, conf.FrontendBaseURL, conf.Debug)
}

func newEmailService(conf *core.Config, tmpls *core.EmailTemplates, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, tmpls, logger)
	}
	return emailsvc.NewSendgridService(conf, tmpls, logger)
}

func newGateway(conf *core.Config, forms *wizard.Registry, mailSvc core.EmailService, loggerParam WizardLoggerParam) wizard.Gateway {
	if conf.Gateway.Kind == "email" {
		return gatewaysvc.NewEmail(forms, mailSvc, conf, loggerParam.Logger)
	}
	return gatewaysvc.NewSimulated(conf.Gateway.SimulatedDelay, loggerParam.Logger)
}

func newTracker(loggerParam WizardLoggerParam) *analytics.Tracker {
	return analytics.New(loggerParam.Logger, analyticsFlushEvery)
}

func newSessionRepository(conf *core.Config, loggerParam WizardLoggerParam) session.Repository {
	return inmemdb.NewSessionRepository(conf.Wizard.SessionTTL, sweepEvery, loggerParam.Logger)
}

func newSessionService(conf *core.Config, repo session.Repository, forms *wizard.Registry, tracker *analytics.Tracker) *session.Service {
	return session.NewService(repo, forms, tracker, conf.Wizard.UploadTick)
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	sessions *session.Service,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Sessions:   sessions,
		Validate:   validate,
		Translator: translator,
	})
}

// RegisterForms registers the built-in admission forms and the definitions of the definitions dir.
// validate must have been initialized with core.InitValidators.
func RegisterForms(conf *core.Config, forms *wizard.Registry, gateway wizard.Gateway, validate *validator.Validate, logger core.Logger) error {
	if err := admission.Register(forms, gateway); err != nil {
		return errors.Wrap(err, "registering admission forms")
	}
	if conf.Wizard.DefinitionsDir == "" {
		return nil
	}

	defs, err := wizard.LoadDefinitions(conf.Wizard.DefinitionsDir, validate)
	if err != nil {
		return errors.Wrap(err, "loading wizard definitions")
	}
	for _, def := range defs {
		if err = forms.RegisterDefinition(def, gateway); err != nil {
			return errors.Wrapf(err, "registering %s", def.Name)
		}
		logger.Info(fmt.Sprintf("registered form %q", def.Name))
	}
	return nil
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newWizardLogger, dig.Name("wizardLogger")))
	must(c.Provide(newValidate))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newEmailTemplates))
	must(c.Provide(newEmailService))
	must(c.Provide(wizard.NewRegistry))
	must(c.Provide(newGateway))
	must(c.Provide(newTracker))
	must(c.Provide(newSessionRepository))
	must(c.Provide(newSessionService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

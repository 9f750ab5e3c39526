package main

import (
	"log"
	"os"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/wizard"
	emailsvc "github.com/trezcool/admissions/services/email"
	gatewaysvc "github.com/trezcool/admissions/services/gateway"
	logsvc "github.com/trezcool/admissions/services/logger"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger := logsvc.NewRollbarLogger(os.Stderr, "ADMIN", conf)

	validate, translator := newValidate()
	tmpls, err := core.ParseEmailTemplates(conf.Email.TemplatesDir, conf.FrontendBaseURL, conf.Debug)
	if err != nil {
		logger.Fatal("parsing email templates", err)
	}

	// the registry is only listed: submissions never leave the admin CLI
	forms := wizard.NewRegistry()
	if err = admission.Register(forms, gatewaysvc.NewSimulated(conf.Gateway.SimulatedDelay, logger)); err != nil {
		logger.Fatal("registering admission forms", err)
	}

	cli := commandLine{
		conf:       conf,
		forms:      forms,
		validate:   validate,
		translator: translator,
		newMailSvc: func(apiKey string) core.EmailService {
			if apiKey == "" {
				return emailsvc.NewConsoleService(conf, tmpls, logger)
			}
			c := *conf
			c.Email.SendgridApiKey = apiKey
			return emailsvc.NewSendgridService(&c, tmpls, logger)
		},
	}
	if err = cli.rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

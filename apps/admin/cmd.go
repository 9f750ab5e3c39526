package main

import (
	"context"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/wizard"
)

const sendTimeout = 30 * time.Second

var (
	readPasswordFunc = term.ReadPassword // mockable

	errInvalidDefinition = errors.New("invalid wizard definition")
)

type commandLine struct {
	conf       *core.Config
	forms      *wizard.Registry
	validate   *validator.Validate
	translator ut.Translator
	newMailSvc func(apiKey string) core.EmailService // "" selects the console relay
}

func newValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	return validate, translator
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Admissions administration commands",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(cli.formsCmd(), cli.validateCmd(), cli.sendTestCmd())
	return root
}

func (cli *commandLine) formsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forms",
		Short: "List the registered forms and their steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, f := range cli.forms.List() {
				titles := make([]string, 0, len(f.Steps))
				for _, s := range f.Steps {
					titles = append(titles, s.Title)
				}
				fmt.Fprintf(out, "%-10s %-24s %s\n", f.Name, f.Title, strings.Join(titles, " > "))
			}
			return nil
		},
	}
}

func (cli *commandLine) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Parse and compile a YAML wizard definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "reading definition")
			}

			def, err := wizard.ParseDefinition(data, cli.validate)
			if err != nil {
				var vErrs validator.ValidationErrors
				if errors.As(err, &vErrs) {
					for path, msg := range core.TranslateErrors(vErrs, cli.translator) {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", path, msg)
					}
					return errInvalidDefinition
				}
				return err
			}
			steps, err := def.Compile()
			if err != nil {
				return err
			}

			var fields int
			for _, s := range steps {
				fields += len(s.Fields)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: form %q is valid (%d steps, %d fields)\n", args[0], def.Name, len(steps), fields)
			return nil
		},
	}
}

func (cli *commandLine) sendTestCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "sendtest",
		Short: "Send a test message through the email relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cli.validate.Var(to, "required,email"); err != nil {
				return errors.Errorf("--to: %q is not a valid email address", to)
			}

			apiKey := cli.conf.Email.SendgridApiKey
			if apiKey == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter SendGrid API key (empty prints to the console):")
				key, err := readPasswordFunc(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return errors.Wrap(err, "reading API key")
				}
				apiKey = strings.TrimSpace(string(key))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
			defer cancel()
			msg := &core.EmailMessage{
				To:           []mail.Address{{Address: to}},
				Subject:      "Test message",
				TemplateName: "test",
				TemplateData: cli.conf.AppName,
			}
			if err := cli.newMailSvc(apiKey).Send(ctx, msg); err != nil {
				return errors.Wrap(err, "sending test message")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "test message sent to %s\n", to)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

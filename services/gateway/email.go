package gatewaysvc

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/wizard"
)

const (
	submissionTmpl         = "submission"
	submissionReceivedTmpl = "submission_received"
)

type (
	submissionData struct {
		Form      string
		Title     string
		ReceiptID string
		Entries   []admission.Entry
	}

	receivedData struct {
		Name      string
		Title     string
		ReceiptID string
	}
)

type emailGateway struct {
	forms  *wizard.Registry
	svc    core.EmailService
	inbox  mail.Address
	logger core.Logger
}

var _ wizard.Gateway = (*emailGateway)(nil)

// NewEmail returns a gateway relaying submissions to the admissions inbox through svc.
// The inbox email is sent synchronously, the applicant's acknowledgement is fire-and-forget.
// forms is used to look up the submitted form's steps & title.
func NewEmail(forms *wizard.Registry, svc core.EmailService, conf *core.Config, logger core.Logger) wizard.Gateway {
	return &emailGateway{
		forms:  forms,
		svc:    svc,
		inbox:  conf.AdmissionsInbox(),
		logger: logger,
	}
}

func (g *emailGateway) Submit(ctx context.Context, form string, draft wizard.Values) (wizard.Receipt, error) {
	f, err := g.forms.Get(form)
	if err != nil {
		return wizard.Receipt{}, err
	}
	entries, err := admission.Payload(f.Steps, draft)
	if err != nil {
		return wizard.Receipt{}, errors.Wrap(err, "preparing submission")
	}

	receipt := wizard.Receipt{ID: uuid.New().String()}
	msg := &core.EmailMessage{
		To:           []mail.Address{g.inbox},
		Subject:      fmt.Sprintf("New %s submission", f.Title),
		TemplateName: submissionTmpl,
		TemplateData: submissionData{Form: f.Name, Title: f.Title, ReceiptID: receipt.ID, Entries: entries},
	}
	applicant, hasApplicant := applicantAddress(draft)
	if hasApplicant {
		msg.ReplyTo = &applicant
	}
	if err := g.svc.Send(ctx, msg); err != nil {
		return wizard.Receipt{}, errors.Wrap(err, "relaying submission")
	}

	if hasApplicant {
		g.svc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{applicant},
			Subject:      fmt.Sprintf("We received your %s submission", f.Title),
			TemplateName: submissionReceivedTmpl,
			TemplateData: receivedData{Name: applicant.Name, Title: f.Title, ReceiptID: receipt.ID},
		})
	}
	g.logger.Info(fmt.Sprintf("%s submission relayed: %s", form, receipt.ID))
	return receipt, nil
}

// applicantAddress finds who to acknowledge a submission to: the draft's "email" field,
// named after its "firstName" & "lastName" or "name" fields.
func applicantAddress(draft wizard.Values) (mail.Address, bool) {
	addr, err := mail.ParseAddress(strings.TrimSpace(draft.String("email")))
	if err != nil {
		return mail.Address{}, false
	}
	name := strings.TrimSpace(draft.String("firstName") + " " + draft.String("lastName"))
	if name == "" {
		name = strings.TrimSpace(draft.String("name"))
	}
	return mail.Address{Name: name, Address: addr.Address}, true
}

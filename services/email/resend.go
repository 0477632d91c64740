package emailsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"

	"github.com/agoras/agoras/core"
)

const resendTimeout = 10 * time.Second

type resendService struct {
	client     *resend.Client
	from       string
	subjPrefix string
	tmpls      *core.EmailTemplates
	logger     core.Logger
}

var _ core.EmailService = (*resendService)(nil)

func NewResendService(conf *core.Config, tmpls *core.EmailTemplates, logger core.Logger) core.EmailService {
	from := conf.FromAddress()
	return &resendService{
		client:     resend.NewClient(conf.Email.ResendAPIKey),
		from:       from.String(),
		subjPrefix: "[" + conf.AppName + "] ",
		tmpls:      tmpls,
		logger:     logger,
	}
}

func (svc *resendService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := svc.tmpls.Render(msg); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), errors.Wrap(err, "rendering email"))
				return
			}
			if msg.HasRecipients() && msg.HasContent() {
				svc.send(*msg)
			}
		}()
	}
}

func (svc *resendService) prepare(msg core.EmailMessage) *resend.SendEmailRequest {
	return &resend.SendEmailRequest{
		From:    svc.from,
		To:      addressList(msg.To),
		Cc:      addressList(msg.Cc),
		Bcc:     addressList(msg.Bcc),
		Subject: svc.subjPrefix + msg.Subject,
		Text:    msg.TextContent,
		Html:    msg.HTMLContent,
	}
}

func (svc *resendService) send(msg core.EmailMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), resendTimeout)
	defer cancel()

	if _, err := svc.client.Emails.SendWithContext(ctx, svc.prepare(msg)); err != nil {
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), errors.Wrap(err, "sending email"), map[string]interface{}{
			"to":      joinAddresses(msg.To),
			"subject": msg.Subject,
		})
	}
}

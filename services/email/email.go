// Package emailsvc delivers core.EmailMessage through the configured provider.
package emailsvc

import (
	"net/mail"

	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
)

// New returns the email service of conf.Email.Provider.
func New(conf *core.Config, tmpls *core.EmailTemplates, logger core.Logger) (core.EmailService, error) {
	switch conf.Email.Provider {
	case core.EmailProviderConsole:
		return NewConsoleService(conf, tmpls, logger), nil
	case core.EmailProviderSendgrid:
		return NewSendgridService(conf, tmpls, logger), nil
	case core.EmailProviderResend:
		return NewResendService(conf, tmpls, logger), nil
	}
	return nil, errors.Errorf("unknown email provider %q", conf.Email.Provider)
}

func addressList(addrs []mail.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.String())
	}
	return list
}

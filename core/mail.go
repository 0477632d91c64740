package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	texttmpl "text/template"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

const emailTemplatesDir = "templates/email"

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}

	// EmailTemplates renders EmailMessage contents.
	// A template `name` is made of `name.txt` (text part) and `name.md` (markdown, converted into the
	// html part and wrapped by `_base.gohtml`). Either file may be missing.
	EmailTemplates struct {
		appName         string
		frontendBaseURL string
		text            map[string]*texttmpl.Template
		markdown        map[string]*texttmpl.Template
		layout          *htmltmpl.Template
		md              goldmark.Markdown
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseEmailTemplates parses every template under templates/email in fsys.
func ParseEmailTemplates(fsys fs.FS, conf *Config) (*EmailTemplates, error) {
	tmpls := &EmailTemplates{
		appName:         conf.AppName,
		frontendBaseURL: conf.FrontendBaseURL,
		text:            make(map[string]*texttmpl.Template),
		markdown:        make(map[string]*texttmpl.Template),
		md:              goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps())),
	}
	strict := conf.Debug || conf.TestMode

	layout, err := htmltmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.gohtml"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing html layout")
	}
	tmpls.layout = layout

	fps, err := fs.Glob(fsys, path.Join(emailTemplatesDir, "*"))
	if err != nil {
		return nil, errors.Wrap(err, "listing email templates")
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".md") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)

		var tmpl *texttmpl.Template
		if ext == ".txt" {
			tmpl, err = texttmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.txt"), fp)
		} else {
			tmpl, err = texttmpl.ParseFS(fsys, fp)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", fname)
		}
		if strict {
			tmpl = tmpl.Option("missingkey=error")
		}

		if ext == ".txt" {
			tmpls.text[name] = tmpl
		} else {
			tmpls.markdown[name] = tmpl
		}
	}
	return tmpls, nil
}

// Render fills msg.TextContent and msg.HTMLContent.
func (t *EmailTemplates) Render(msg *EmailMessage) error {
	if msg.BodyStr != "" {
		msg.TextContent = msg.BodyStr
	}
	if msg.TemplateName == "" {
		return nil
	}
	data := ContextData{
		AppName:         t.appName,
		FrontendBaseURL: t.frontendBaseURL,
		Data:            msg.TemplateData,
	}

	if tmpl, ok := t.text[msg.TemplateName]; ok && msg.BodyStr == "" {
		var buff bytes.Buffer
		if err := tmpl.Execute(&buff, data); err != nil {
			return errors.Wrap(err, "rendering text")
		}
		msg.TextContent = buff.String()
	}

	if tmpl, ok := t.markdown[msg.TemplateName]; ok {
		var src, body bytes.Buffer
		if err := tmpl.Execute(&src, data); err != nil {
			return errors.Wrap(err, "rendering markdown")
		}
		if err := t.md.Convert(src.Bytes(), &body); err != nil {
			return errors.Wrap(err, "converting markdown")
		}

		var buff bytes.Buffer
		err := t.layout.Execute(&buff, struct {
			ContextData
			Subject string
			Content htmltmpl.HTML
		}{data, msg.Subject, htmltmpl.HTML(body.String())}) // nolint:gosec
		if err != nil {
			return errors.Wrap(err, "rendering html layout")
		}
		msg.HTMLContent = buff.String()
	}
	return nil
}

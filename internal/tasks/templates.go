package tasks

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Email template IDs.
const (
	TemplateShopApproved = "shop_approved"
	TemplateShopRejected = "shop_rejected"
	TemplateShopRevoked  = "shop_revoked"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var emailTemplates = map[string]emailTemplate{
	TemplateShopApproved: mustTemplate(TemplateShopApproved,
		"Your shop {{.ShopName}} was approved",
		`Hello {{.OwnerName}},

Your shop "{{.ShopName}}" has been approved on {{.AppName}}.
You can now log in as a shop and post lost phone reports on behalf of your customers.
`),
	TemplateShopRejected: mustTemplate(TemplateShopRejected,
		"Your shop {{.ShopName}} was rejected",
		`Hello {{.OwnerName}},

Your shop registration "{{.ShopName}}" was not approved on {{.AppName}}.
{{if .Reason}}Reason: {{.Reason}}
{{end}}You can still log in and use {{.AppName}} with a regular account.
`),
	TemplateShopRevoked: mustTemplate(TemplateShopRevoked,
		"Shop approval revoked for {{.ShopName}}",
		`Hello {{.OwnerName}},

The approval of your shop "{{.ShopName}}" on {{.AppName}} has been revoked.
{{if .Reason}}Reason: {{.Reason}}
{{end}}Your account keeps working as a regular account.
`),
}

func mustTemplate(id, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(id + ".subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(id + ".body").Option("missingkey=zero").Parse(body)),
	}
}

func renderEmail(templateID string, data map[string]string) (subject, body string, err error) {
	tmpl, ok := emailTemplates[templateID]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", templateID)
	}
	var sb strings.Builder
	if err := tmpl.subject.Execute(&sb, data); err != nil {
		return "", "", err
	}
	subject = sb.String()
	sb.Reset()
	if err := tmpl.body.Execute(&sb, data); err != nil {
		return "", "", err
	}
	return subject, sb.String(), nil
}

// buildMessage assembles a plain-text RFC 5322 message.
func buildMessage(from, to, subject, body string) []byte {
	if from == "" {
		from = "noreply@findmyphone.lk"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(sb.String())
}

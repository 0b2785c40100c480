// Package render implements the pluggable template renderer of spec
// §4.5/§6: (template_name, data) -> (headers, body), with a non-fatal
// fallback when rendering fails. Supplemented from
// original_source/email_templates.py's named-template registry,
// reimplemented with text/template (see DESIGN.md for why no pack
// library improves on the standard library here).
package render

import (
	"bytes"
	"fmt"
	"text/template"
)

// Headers carries the minimal set of MIME headers the worker needs to
// hand to a provider.
type Headers struct {
	Subject string
}

// Body is the rendered plain-text or HTML body.
type Body string

// templates holds the small set of named emails this system knows how
// to render, mirroring original_source's default templates but kept
// terse and text-only rather than styled HTML, since MIME composition
// is the provider's concern, not the renderer's.
var templates = map[string]struct {
	subject *template.Template
	body    *template.Template
}{
	"user_welcome": {
		subject: template.Must(template.New("user_welcome_subject").Parse(`Welcome to the platform, {{.name}}!`)),
		body: template.Must(template.New("user_welcome_body").Parse(
			"Hi {{.name}},\n\nVerify your email address: {{.verification_link}}\n")),
	},
	"password_reset": {
		subject: template.Must(template.New("password_reset_subject").Parse(`Reset your password`)),
		body: template.Must(template.New("password_reset_body").Parse(
			"We received a request to reset your password.\n\nReset it here: {{.reset_link}}\nThis link expires in 1 hour.\n")),
	},
	"group_invitation": {
		subject: template.Must(template.New("group_invitation_subject").Parse(`{{.inviter}} invited you to join {{.group_name}}`)),
		body: template.Must(template.New("group_invitation_body").Parse(
			"{{.inviter}} invited you to join {{.group_name}}.\n\nJoin here: {{.join_link}}\n")),
	},
	"new_message": {
		subject: template.Must(template.New("new_message_subject").Parse(`New message in {{.group_name}}`)),
		body: template.Must(template.New("new_message_body").Parse(
			"{{.sender}} posted in {{.group_name}}:\n\n\"{{.preview}}\"\n\nView it here: {{.group_link}}\n")),
	},
	"weekly_digest": {
		subject: template.Must(template.New("weekly_digest_subject").Parse(`Your weekly digest`)),
		body: template.Must(template.New("weekly_digest_body").Parse(
			"Here is what happened this week. See the full digest at https://example.com/discover\n")),
	},
}

// Renderer renders named templates against job template data.
type Renderer struct{}

// New builds a Renderer over the built-in template set.
func New() *Renderer {
	return &Renderer{}
}

// Render produces headers and a body for name using data. The error it
// returns is informational only — callers treat render failure as
// non-fatal and fall back to Fallback.
func (r *Renderer) Render(name string, data map[string]any) (Headers, Body, error) {
	tmpl, ok := templates[name]
	if !ok {
		return Headers{}, "", fmt.Errorf("render: unknown template %q", name)
	}

	var subjectBuf, bodyBuf bytes.Buffer
	if err := tmpl.subject.Execute(&subjectBuf, data); err != nil {
		return Headers{}, "", fmt.Errorf("render: subject for %q: %w", name, err)
	}
	if err := tmpl.body.Execute(&bodyBuf, data); err != nil {
		return Headers{}, "", fmt.Errorf("render: body for %q: %w", name, err)
	}

	return Headers{Subject: subjectBuf.String()}, Body(bodyBuf.String()), nil
}

// Fallback builds the minimal plain-text body used when Render fails or
// the template name is unknown (spec §4.5 step 4 / §6 renderer contract):
// subject and message pulled straight from template_data, with sane
// defaults if absent.
func Fallback(data map[string]any) (Headers, Body) {
	subject, _ := data["subject"].(string)
	if subject == "" {
		subject = "Notification"
	}
	message, _ := data["message"].(string)
	return Headers{Subject: subject}, Body(message)
}

package account

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/template/django/v3"
)

//go:embed data/templates/mail
var mailTemplatesFS embed.FS

const (
	resetMailSubject      = "Reset your password"
	resetMailTemplate     = "password_reset"
	resetMailHTMLTemplate = "password_reset_html"
)

// MailRenderer renders named mail templates
type MailRenderer interface {
	Render(name string, data map[string]any) (string, error)
}

type djangoMailRenderer struct {
	once   sync.Once
	engine *django.Engine
	err    error
}

// NewMailRenderer returns a renderer over the embedded mail templates
func NewMailRenderer() MailRenderer {
	return &djangoMailRenderer{}
}

func (r *djangoMailRenderer) load() error {
	r.once.Do(func() {
		sub, err := fs.Sub(mailTemplatesFS, "data/templates/mail")
		if err != nil {
			r.err = err
			return
		}
		r.engine = django.NewFileSystem(http.FS(sub), ".django")
		r.err = r.engine.Load()
	})
	return r.err
}

func (r *djangoMailRenderer) Render(name string, data map[string]any) (string, error) {
	if err := r.load(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.engine.Render(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ResetLink joins the configured reset URL and the token
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/" + token
}

// BuildResetMail composes the password reset message for user
func BuildResetMail(renderer MailRenderer, user *User, link string, ttl time.Duration) (MailMessage, error) {
	data := map[string]any{
		"name":        user.Name.Full(),
		"email":       user.Email,
		"link":        link,
		"ttl_minutes": int(ttl.Minutes()),
	}

	text, err := renderer.Render(resetMailTemplate, data)
	if err != nil {
		return MailMessage{}, err
	}

	html, err := renderer.Render(resetMailHTMLTemplate, data)
	if err != nil {
		return MailMessage{}, err
	}

	return MailMessage{
		To:      []string{user.Email},
		Subject: resetMailSubject,
		Text:    text,
		HTML:    html,
	}, nil
}

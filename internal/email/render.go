package email

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// Template pairs the HTML and plain text bodies of one kind of email.
type Template struct {
	HTML *htmltemplate.Template
	Text *texttemplate.Template
}

// MustTemplate parses both bodies and panics on error. Meant for package
// level variables.
func MustTemplate(name, html, text string) Template {
	return Template{
		HTML: htmltemplate.Must(htmltemplate.New(name + ".html").Parse(html)),
		Text: texttemplate.Must(texttemplate.New(name + ".txt").Parse(text)),
	}
}

// Render executes both templates with data and fills the bodies of e.
func (t Template) Render(e Email, data any) (Email, error) {
	var html, text bytes.Buffer
	if err := t.HTML.Execute(&html, data); err != nil {
		return Email{}, err
	}
	if err := t.Text.Execute(&text, data); err != nil {
		return Email{}, err
	}
	e.BodyHTML, e.BodyText = html.String(), text.String()
	return e, nil
}

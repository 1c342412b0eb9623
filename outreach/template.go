package outreach

import (
	"strings"

	"coldreach/models"
)

// RenderTemplate substitutes the named placeholders a step template may
// use with the contact's fields. Placeholders the renderer does not know
// are left as literal text: a malformed template must not block a batch,
// so rendering fails open instead of erroring.
//
// Supported placeholders: {{name}}, {{first_name}}, {{company}},
// {{personalization}}.
func RenderTemplate(tmpl string, contact *models.Contact) string {
	name := contact.Name
	if name == "" {
		name = "there"
	}
	company := contact.Company
	if company == "" {
		company = "your business"
	}

	replacer := strings.NewReplacer(
		"{{name}}", name,
		"{{first_name}}", contact.FirstName(),
		"{{company}}", company,
		"{{personalization}}", contact.PersonalizationLine,
	)
	return replacer.Replace(tmpl)
}

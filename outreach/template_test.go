package outreach

import (
	"testing"

	"coldreach/models"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		contact models.Contact
		want    string
	}{
		{
			name: "all placeholders",
			tmpl: "Hi {{first_name}}, {{personalization}} Is {{company}} hiring?",
			contact: models.Contact{
				Name:                "Ada Lovelace",
				Company:             "Analytical Engines",
				PersonalizationLine: "Loved your compiler writeup.",
			},
			want: "Hi Ada, Loved your compiler writeup. Is Analytical Engines hiring?",
		},
		{
			name:    "missing fields fall back",
			tmpl:    "Hi {{name}}, greetings from us to {{company}}",
			contact: models.Contact{},
			want:    "Hi there, greetings from us to your business",
		},
		{
			name:    "first name of empty name",
			tmpl:    "Hi {{first_name}}",
			contact: models.Contact{},
			want:    "Hi there",
		},
		{
			name:    "unknown placeholder stays literal",
			tmpl:    "Hi {{nmae}}, bye",
			contact: models.Contact{Name: "Ada"},
			want:    "Hi {{nmae}}, bye",
		},
		{
			name:    "empty personalization renders empty",
			tmpl:    "{{personalization}}",
			contact: models.Contact{Name: "Ada"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderTemplate(tt.tmpl, &tt.contact); got != tt.want {
				t.Errorf("RenderTemplate(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

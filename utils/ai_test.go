package utils

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"coldreach/config"
	"coldreach/models"
	"coldreach/outreach"
)

func TestParseReplyAnalysis(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantOK bool
		want   outreach.ReplyAnalysis
	}{
		{
			name:   "plain JSON",
			input:  `{"intent": "Interested", "sentiment": "Positive", "summary": "wants a demo"}`,
			wantOK: true,
			want:   outreach.ReplyAnalysis{Intent: "Interested", Sentiment: "Positive", Summary: "wants a demo"},
		},
		{
			name: "fenced JSON with prose",
			input: "Sure! Here is the classification:\n```json\n" +
				`{"intent": "OOO", "sentiment": "Neutral", "summary": "back next week"}` +
				"\n```\nLet me know if you need anything else.",
			wantOK: true,
			want:   outreach.ReplyAnalysis{Intent: "OOO", Sentiment: "Neutral", Summary: "back next week"},
		},
		{
			name:   "missing fields get defaults",
			input:  `{"summary": "unclear"}`,
			wantOK: true,
			want:   outreach.ReplyAnalysis{Intent: "Other", Sentiment: "Neutral", Summary: "unclear"},
		},
		{
			name:   "no JSON at all",
			input:  "I cannot classify this message.",
			wantOK: false,
		},
		{
			name:   "broken JSON",
			input:  `{"intent": "Interested",`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseReplyAnalysis(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

// failingGenerator simulates an unreachable provider.
type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("provider unreachable")
}

type cannedGenerator struct {
	output string
}

func (g cannedGenerator) Generate(context.Context, string) (string, error) {
	return g.output, nil
}

func TestClassifierDegradesToDefault(t *testing.T) {
	logger := discardLogger()

	down := NewAIClassifier(failingGenerator{}, logger)
	if got := down.Classify(context.Background(), "any reply"); got != outreach.DefaultReplyAnalysis() {
		t.Errorf("failing provider: got %+v, want neutral default", got)
	}

	rambling := NewAIClassifier(cannedGenerator{output: "As an AI I think this is positive."}, logger)
	if got := rambling.Classify(context.Background(), "any reply"); got != outreach.DefaultReplyAnalysis() {
		t.Errorf("unparseable output: got %+v, want neutral default", got)
	}

	working := NewAIClassifier(cannedGenerator{output: `{"intent":"Not Interested","sentiment":"Negative","summary":"asked to stop"}`}, logger)
	got := working.Classify(context.Background(), "please stop emailing me")
	if got.Intent != "Not Interested" || got.Sentiment != "Negative" {
		t.Errorf("got %+v", got)
	}
}

func TestClipNeverSplitsRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"truncated", 5, "trunc"},
		// "é" is two bytes; clipping inside it must back up to the "h".
		{"héllo", 2, "h"},
		{"日本語", 4, "日"},
	}
	for _, tt := range tests {
		got := clip(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("clip(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("clip(%q, %d) produced invalid UTF-8", tt.in, tt.max)
		}
	}
}

func TestStaticClassifier(t *testing.T) {
	got := StaticClassifier{}.Classify(context.Background(), "whatever")
	if got != outreach.DefaultReplyAnalysis() {
		t.Errorf("got %+v, want neutral default", got)
	}
}

func TestPersonalizerTrimsQuotes(t *testing.T) {
	p := NewAIPersonalizer(cannedGenerator{output: "\"Impressive work on the analytical engine.\"\n"}, discardLogger())
	line, err := p.Personalize(context.Background(), &models.Contact{Name: "Ada", Company: "Analytical Engines"})
	if err != nil {
		t.Fatalf("Personalize: %v", err)
	}
	if line != "Impressive work on the analytical engine." {
		t.Errorf("line = %q", line)
	}
}

func TestNewGeneratorProviderSelection(t *testing.T) {
	if _, err := NewGenerator(config.AIConfig{Provider: "openai"}); err == nil {
		t.Error("missing API key must be rejected")
	}
	if _, err := NewGenerator(config.AIConfig{Provider: "custom", APIKey: "k"}); err == nil {
		t.Error("custom provider without a base URL must be rejected")
	}
	if _, err := NewGenerator(config.AIConfig{Provider: "martian", APIKey: "k"}); err == nil {
		t.Error("unknown provider must be rejected")
	}
	if gen, err := NewGenerator(config.AIConfig{Provider: "custom", APIKey: "k", Model: "m", BaseURL: "http://localhost:8080/v1/"}); err != nil || gen == nil {
		t.Errorf("custom provider rejected: %v", err)
	}
}

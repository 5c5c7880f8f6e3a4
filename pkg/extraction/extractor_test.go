package extraction

import (
	"reflect"
	"testing"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	extractor, err := NewExtractor(DefaultRules())
	if err != nil {
		t.Fatalf("failed to build extractor: %v", err)
	}
	return extractor
}

func TestExtractReturnsEmptyWithoutMatches(t *testing.T) {
	extractor := newTestExtractor(t)

	for _, text := range []string{
		"",
		"The weather was pleasant during the visit.",
		"Follow up scheduled for next Tuesday morning.",
	} {
		got := extractor.Extract(text)
		if len(got) != 0 {
			t.Fatalf("text %q: expected no conditions, got %v", text, got)
		}
	}
}

func TestExtractCanonicalizesKeywordGroups(t *testing.T) {
	extractor := newTestExtractor(t)

	got := extractor.Extract("Patient is diabetic with a history of high blood pressure and cardiac issues.")
	want := []string{"diabetes", "hypertension", "heart disease"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractTranscriptFirstSeenOrder(t *testing.T) {
	extractor := newTestExtractor(t)

	got := extractor.Extract("Patient diagnosed with diabetes and hypertension, no allergies")
	want := []string{"diabetes", "hypertension"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExtractContextualCapture(t *testing.T) {
	extractor := newTestExtractor(t)

	got := extractor.Extract("She has been suffering from chronic fatigue syndrome; otherwise well.")
	found := false
	for _, c := range got {
		if c == "chronic fatigue syndrome" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected contextual capture, got %v", got)
	}
}

func TestExtractRejectsDisqualifiedCaptures(t *testing.T) {
	extractor := newTestExtractor(t)

	got := extractor.Extract("Patient has a follow-up appointment booked for the new medication review")
	if len(got) != 0 {
		t.Fatalf("expected scheduling chatter to be rejected, got %v", got)
	}
}

func TestExtractDeduplicatesAcrossPasses(t *testing.T) {
	extractor := newTestExtractor(t)

	got := extractor.Extract("Diagnosed with diabetes. The patient has diabetes.")
	want := []string{"diabetes"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLoadRulesFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadRules("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Groups) < 15 {
		t.Fatalf("expected built-in vocabulary, got %d groups", len(cfg.Groups))
	}
}

package entities

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRichNormalizerFillsDefaults(t *testing.T) {
	raw := map[string]interface{}{
		"conditions": []interface{}{
			map[string]interface{}{"name": "diabetes", "severity": "severe"},
			"hypertension",
		},
		"medications": []interface{}{
			map[string]interface{}{"name": "metformin", "dosage": "500mg", "frequency": "twice daily"},
		},
		"allergies": []interface{}{
			map[string]interface{}{"allergen": "penicillin", "reaction": "rash"},
			"latex",
		},
		"vitals": map[string]interface{}{"bp": "140/90"},
	}

	out := RichNormalizer{}.Normalize(raw)

	if len(out.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(out.Conditions))
	}
	if out.Conditions[0].Severity != "severe" || out.Conditions[0].Status != "active" {
		t.Fatalf("unexpected first condition: %+v", out.Conditions[0])
	}
	if out.Conditions[1].Name != "hypertension" || out.Conditions[1].Severity != "moderate" {
		t.Fatalf("bare string should get moderate default: %+v", out.Conditions[1])
	}
	if out.Medications[0].Dosage != "500mg" {
		t.Fatalf("expected dosage preserved, got %+v", out.Medications[0])
	}
	if out.Allergies[1].Allergen != "latex" || out.Allergies[1].Severity != "moderate" {
		t.Fatalf("unexpected allergy: %+v", out.Allergies[1])
	}
	if out.Vitals["bp"] != "140/90" {
		t.Fatalf("vitals not passed through: %v", out.Vitals)
	}
}

func TestNormalizerIsTotal(t *testing.T) {
	inputs := []map[string]interface{}{
		nil,
		{},
		{"conditions": "not-a-list", "vitals": []interface{}{"wrong"}},
		{"conditions": []interface{}{42, true, nil, ""}},
		{"medications": []interface{}{map[string]interface{}{"dosage": "no name"}}},
	}

	for i, raw := range inputs {
		for _, n := range []Normalizer{RichNormalizer{}, SimpleNormalizer{}} {
			out := n.Normalize(raw)
			if out.Conditions == nil || out.Medications == nil || out.Allergies == nil ||
				out.Symptoms == nil || out.Comorbidities == nil || out.Vitals == nil || out.LabResults == nil {
				t.Fatalf("input %d: normalized output has nil field: %+v", i, out)
			}
		}
	}
}

func TestNormalizerIsIdempotent(t *testing.T) {
	raw := map[string]interface{}{
		"conditions":    []interface{}{"diabetes", map[string]interface{}{"name": "asthma", "severity": "mild", "status": "Remission"}},
		"medications":   []interface{}{map[string]interface{}{"name": "insulin", "route": "subcutaneous"}},
		"allergies":     []interface{}{"peanuts"},
		"symptoms":      []interface{}{map[string]interface{}{"name": "fatigue", "severity": "severe"}},
		"comorbidities": []interface{}{"obesity"},
		"labResults":    map[string]interface{}{"hba1c": 7.2},
	}

	for _, n := range []Normalizer{RichNormalizer{}, SimpleNormalizer{}} {
		first := n.Normalize(raw)

		encoded, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var roundTripped map[string]interface{}
		if err := json.Unmarshal(encoded, &roundTripped); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		second := n.Normalize(roundTripped)
		if !reflect.DeepEqual(first.Conditions, second.Conditions) ||
			!reflect.DeepEqual(first.Medications, second.Medications) ||
			!reflect.DeepEqual(first.Allergies, second.Allergies) ||
			!reflect.DeepEqual(first.Symptoms, second.Symptoms) ||
			!reflect.DeepEqual(first.Comorbidities, second.Comorbidities) {
			t.Fatalf("normalize not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
		}
	}
}

func TestSimpleNormalizerIgnoresRichFields(t *testing.T) {
	raw := map[string]interface{}{
		"conditions": []interface{}{
			map[string]interface{}{"name": "cancer", "severity": "severe", "status": "chronic"},
		},
	}

	out := SimpleNormalizer{}.Normalize(raw)
	if len(out.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(out.Conditions))
	}
	if out.Conditions[0].Severity != "moderate" || out.Conditions[0].Status != "active" {
		t.Fatalf("simple schema should apply defaults, got %+v", out.Conditions[0])
	}
}

func TestConditionNamesDeduplicates(t *testing.T) {
	s := StructuredEntities{
		Conditions:    []ConditionEntity{{Name: "diabetes"}, {Name: "asthma"}},
		Comorbidities: []ConditionEntity{{Name: "diabetes"}, {Name: "obesity"}},
	}
	names := s.ConditionNames()
	want := []string{"diabetes", "asthma", "obesity"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("got %v, want %v", names, want)
	}
}

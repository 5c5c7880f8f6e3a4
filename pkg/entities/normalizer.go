package entities

import (
	"fmt"
	"strings"
)

// Two extraction schemas coexist: some providers return plain string
// lists, others an object per entity. Each gets its own normalizer
// behind one interface instead of a lossy common subset.
type Normalizer interface {
	Normalize(raw map[string]interface{}) StructuredEntities
}

const (
	SchemaSimple = "simple"
	SchemaRich   = "rich"
)

// ForSchema selects the normalizer variant for a provider schema.
// Unrecognized schemas get the rich variant, which tolerates both shapes.
func ForSchema(schema string) Normalizer {
	if strings.EqualFold(schema, SchemaSimple) {
		return SimpleNormalizer{}
	}
	return RichNormalizer{}
}

// RichNormalizer coerces the object-per-entity schema. Bare strings are
// promoted to objects with defaults; objects keep their recognized
// sub-fields with missing ones defaulted. It never fails and is
// idempotent over its own output.
type RichNormalizer struct{}

func (RichNormalizer) Normalize(raw map[string]interface{}) StructuredEntities {
	out := StructuredEntities{
		Conditions:    []ConditionEntity{},
		Medications:   []MedicationEntity{},
		Allergies:     []AllergyEntity{},
		Symptoms:      []SymptomEntity{},
		Comorbidities: []ConditionEntity{},
		Vitals:        extractMap(index(raw, "vitals")),
		LabResults:    extractMap(index(raw, "labResults")),
	}

	for _, item := range extractList(index(raw, "conditions")) {
		if c, ok := coerceCondition(item, true); ok {
			out.Conditions = append(out.Conditions, c)
		}
	}
	for _, item := range extractList(index(raw, "medications")) {
		if m, ok := coerceMedication(item, true); ok {
			out.Medications = append(out.Medications, m)
		}
	}
	for _, item := range extractList(index(raw, "allergies")) {
		if a, ok := coerceAllergy(item, true); ok {
			out.Allergies = append(out.Allergies, a)
		}
	}
	for _, item := range extractList(index(raw, "symptoms")) {
		if s, ok := coerceSymptom(item, true); ok {
			out.Symptoms = append(out.Symptoms, s)
		}
	}
	for _, item := range extractList(index(raw, "comorbidities")) {
		if c, ok := coerceCondition(item, true); ok {
			out.Comorbidities = append(out.Comorbidities, c)
		}
	}

	return out
}

// SimpleNormalizer coerces the plain-string-list schema. Objects are
// tolerated but only their name field is read, so everything it emits
// carries default severities and statuses.
type SimpleNormalizer struct{}

func (SimpleNormalizer) Normalize(raw map[string]interface{}) StructuredEntities {
	out := StructuredEntities{
		Conditions:    []ConditionEntity{},
		Medications:   []MedicationEntity{},
		Allergies:     []AllergyEntity{},
		Symptoms:      []SymptomEntity{},
		Comorbidities: []ConditionEntity{},
		Vitals:        extractMap(index(raw, "vitals")),
		LabResults:    extractMap(index(raw, "labResults")),
	}

	for _, item := range extractList(index(raw, "conditions")) {
		if c, ok := coerceCondition(item, false); ok {
			out.Conditions = append(out.Conditions, c)
		}
	}
	for _, item := range extractList(index(raw, "medications")) {
		if m, ok := coerceMedication(item, false); ok {
			out.Medications = append(out.Medications, m)
		}
	}
	for _, item := range extractList(index(raw, "allergies")) {
		if a, ok := coerceAllergy(item, false); ok {
			out.Allergies = append(out.Allergies, a)
		}
	}
	for _, item := range extractList(index(raw, "symptoms")) {
		if s, ok := coerceSymptom(item, false); ok {
			out.Symptoms = append(out.Symptoms, s)
		}
	}
	for _, item := range extractList(index(raw, "comorbidities")) {
		if c, ok := coerceCondition(item, false); ok {
			out.Comorbidities = append(out.Comorbidities, c)
		}
	}

	return out
}

func coerceCondition(item interface{}, richFields bool) (ConditionEntity, bool) {
	switch v := item.(type) {
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return ConditionEntity{}, false
		}
		return ConditionEntity{Name: name, Severity: SeverityModerate, Status: StatusActive}, true
	case map[string]interface{}:
		name := getString(v["name"])
		if name == "" {
			return ConditionEntity{}, false
		}
		c := ConditionEntity{Name: name, Severity: SeverityModerate, Status: StatusActive}
		if richFields {
			c.Severity = normalizeSeverity(getString(v["severity"]))
			if status := getString(v["status"]); status != "" {
				c.Status = strings.ToLower(status)
			}
		}
		return c, true
	default:
		return ConditionEntity{}, false
	}
}

func coerceMedication(item interface{}, richFields bool) (MedicationEntity, bool) {
	switch v := item.(type) {
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return MedicationEntity{}, false
		}
		return MedicationEntity{Name: name}, true
	case map[string]interface{}:
		name := getString(v["name"])
		if name == "" {
			return MedicationEntity{}, false
		}
		m := MedicationEntity{Name: name}
		if richFields {
			m.Dosage = getString(v["dosage"])
			m.Frequency = getString(v["frequency"])
			m.Route = getString(v["route"])
		}
		return m, true
	default:
		return MedicationEntity{}, false
	}
}

func coerceAllergy(item interface{}, richFields bool) (AllergyEntity, bool) {
	switch v := item.(type) {
	case string:
		allergen := strings.TrimSpace(v)
		if allergen == "" {
			return AllergyEntity{}, false
		}
		return AllergyEntity{Allergen: allergen, Severity: SeverityModerate}, true
	case map[string]interface{}:
		allergen := getString(v["allergen"])
		if allergen == "" {
			allergen = getString(v["name"])
		}
		if allergen == "" {
			return AllergyEntity{}, false
		}
		a := AllergyEntity{Allergen: allergen, Severity: SeverityModerate}
		if richFields {
			a.Reaction = getString(v["reaction"])
			a.Severity = normalizeSeverity(getString(v["severity"]))
		}
		return a, true
	default:
		return AllergyEntity{}, false
	}
}

func coerceSymptom(item interface{}, richFields bool) (SymptomEntity, bool) {
	switch v := item.(type) {
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return SymptomEntity{}, false
		}
		return SymptomEntity{Name: name, Severity: SeverityModerate}, true
	case map[string]interface{}:
		name := getString(v["name"])
		if name == "" {
			return SymptomEntity{}, false
		}
		s := SymptomEntity{Name: name, Severity: SeverityModerate}
		if richFields {
			s.Severity = normalizeSeverity(getString(v["severity"]))
		}
		return s, true
	default:
		return SymptomEntity{}, false
	}
}

func normalizeSeverity(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case SeverityMild:
		return SeverityMild
	case SeveritySevere:
		return SeveritySevere
	default:
		return SeverityModerate
	}
}

func index(raw map[string]interface{}, key string) interface{} {
	if raw == nil {
		return nil
	}
	return raw[key]
}

func extractList(value interface{}) []interface{} {
	if list, ok := value.([]interface{}); ok {
		return list
	}
	return nil
}

func extractMap(value interface{}) map[string]interface{} {
	if m, ok := value.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func getString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return ""
	}
}

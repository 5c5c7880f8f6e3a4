package entities

const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"

	StatusActive = "active"
)

type ConditionEntity struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
}

type MedicationEntity struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Route     string `json:"route,omitempty"`
}

type AllergyEntity struct {
	Allergen string `json:"allergen"`
	Reaction string `json:"reaction,omitempty"`
	Severity string `json:"severity"`
}

type SymptomEntity struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
}

// StructuredEntities is the canonical shape every provider payload is
// coerced into. After normalization no list or map field is ever nil.
type StructuredEntities struct {
	Conditions    []ConditionEntity      `json:"conditions"`
	Medications   []MedicationEntity     `json:"medications"`
	Allergies     []AllergyEntity        `json:"allergies"`
	Symptoms      []SymptomEntity        `json:"symptoms"`
	Comorbidities []ConditionEntity      `json:"comorbidities"`
	Vitals        map[string]interface{} `json:"vitals"`
	LabResults    map[string]interface{} `json:"labResults"`
}

// ConditionNames lists condition and comorbidity names in order, without
// duplicates. Used to seed registry queries.
func (s StructuredEntities) ConditionNames() []string {
	seen := make(map[string]struct{})
	names := []string{}
	for _, c := range s.Conditions {
		if _, ok := seen[c.Name]; ok || c.Name == "" {
			continue
		}
		seen[c.Name] = struct{}{}
		names = append(names, c.Name)
	}
	for _, c := range s.Comorbidities {
		if _, ok := seen[c.Name]; ok || c.Name == "" {
			continue
		}
		seen[c.Name] = struct{}{}
		names = append(names, c.Name)
	}
	return names
}

// Empty reports whether normalization produced no usable clinical content.
func (s StructuredEntities) Empty() bool {
	return len(s.Conditions) == 0 && len(s.Medications) == 0 &&
		len(s.Allergies) == 0 && len(s.Symptoms) == 0 &&
		len(s.Comorbidities) == 0 && len(s.Vitals) == 0 && len(s.LabResults) == 0
}

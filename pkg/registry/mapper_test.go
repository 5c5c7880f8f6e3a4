package registry

import (
	"reflect"
	"testing"
)

func sampleRecord() studyRecord {
	return studyRecord{ProtocolSection: protocolSection{
		Identification: identificationModule{NCTID: "NCT01234567", BriefTitle: "Metformin in Early Diabetes"},
		Status:         statusModule{OverallStatus: "RECRUITING", LastUpdatePost: dateStruct{Date: "2026-03-15"}},
		Description:    descriptionModule{BriefSummary: "A phase 2 trial."},
		Conditions:     conditionsModule{Conditions: []string{"Diabetes Mellitus"}},
		Design:         designModule{Phases: []string{"PHASE2"}, StudyType: "INTERVENTIONAL"},
		Sponsor:        sponsorModule{LeadSponsor: leadSponsor{Name: "Example University"}},
		Eligibility: eligibilityModule{
			EligibilityCriteria: "Inclusion Criteria:\n* Adults with type 2 diabetes\n* HbA1c above 7\nExclusion Criteria:\n* Pregnancy\n* Renal failure",
			MinimumAge:          "18 Years",
			MaximumAge:          "65 Years",
			Sex:                 "ALL",
		},
		Locations: locationsModule{Locations: []facilityLocation{
			{Facility: "Example Hospital", City: "Boston", State: "MA", Country: "United States"},
			{Facility: "Empty Site"},
		}},
	}}
}

func TestMapStudyFlattensRecord(t *testing.T) {
	trial := mapStudy(sampleRecord())

	if trial.NCTID != "NCT01234567" || trial.Title != "Metformin in Early Diabetes" {
		t.Fatalf("identification not mapped: %+v", trial)
	}
	if trial.Status != "recruiting" {
		t.Fatalf("expected lowercased status, got %q", trial.Status)
	}
	if trial.Phase != "PHASE2" {
		t.Fatalf("expected joined phases, got %q", trial.Phase)
	}
	if trial.AgeRange == nil || trial.AgeRange.Min != 18 || trial.AgeRange.Max != 65 {
		t.Fatalf("expected age range {18 65}, got %+v", trial.AgeRange)
	}
	if trial.SourceURL != "https://clinicaltrials.gov/study/NCT01234567" {
		t.Fatalf("unexpected source url %q", trial.SourceURL)
	}
	if len(trial.Locations) != 1 || trial.Locations[0] != "Boston, MA, United States" {
		t.Fatalf("unexpected locations %v", trial.Locations)
	}

	wantInclusion := []string{"Adults with type 2 diabetes", "HbA1c above 7"}
	wantExclusion := []string{"Pregnancy", "Renal failure"}
	if !reflect.DeepEqual(trial.EligibilityCriteria, wantInclusion) {
		t.Fatalf("inclusion = %v, want %v", trial.EligibilityCriteria, wantInclusion)
	}
	if !reflect.DeepEqual(trial.ExclusionCriteria, wantExclusion) {
		t.Fatalf("exclusion = %v, want %v", trial.ExclusionCriteria, wantExclusion)
	}
	if trial.LastUpdated.IsZero() {
		t.Fatal("expected lastUpdated parsed")
	}
}

func TestMapStudyDescriptionFallbacks(t *testing.T) {
	record := sampleRecord()
	record.ProtocolSection.Description = descriptionModule{DetailedDescription: "Long form text."}
	if got := mapStudy(record).Description; got != "Long form text." {
		t.Fatalf("expected detailed description fallback, got %q", got)
	}

	record.ProtocolSection.Description = descriptionModule{}
	if got := mapStudy(record).Description; got != "No description available" {
		t.Fatalf("expected literal fallback, got %q", got)
	}
}

func TestMapStudyPhaseFallback(t *testing.T) {
	record := sampleRecord()
	record.ProtocolSection.Design.Phases = nil
	if got := mapStudy(record).Phase; got != "Not specified" {
		t.Fatalf("expected phase fallback, got %q", got)
	}
}

func TestMapAgeRangeRequiresBothBounds(t *testing.T) {
	if r := mapAgeRange("18 Years", "65 Years"); r == nil || r.Min != 18 || r.Max != 65 {
		t.Fatalf("expected {18 65}, got %+v", r)
	}
	if r := mapAgeRange("18 Years", ""); r != nil {
		t.Fatalf("single bound must map to nil, got %+v", r)
	}
	if r := mapAgeRange("N/A", "65 Years"); r != nil {
		t.Fatalf("non-numeric bound must map to nil, got %+v", r)
	}
}

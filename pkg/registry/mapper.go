package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	noDescription = "No description available"
	phaseUnknown  = "Not specified"
	studyURLBase  = "https://clinicaltrials.gov/study/%s"
)

var firstInteger = regexp.MustCompile(`\d+`)

// mapStudy flattens one nested registry record into the domain shape.
func mapStudy(record studyRecord) MappedClinicalTrial {
	section := record.ProtocolSection

	description := section.Description.BriefSummary
	if description == "" {
		description = section.Description.DetailedDescription
	}
	if description == "" {
		description = noDescription
	}

	phase := phaseUnknown
	if len(section.Design.Phases) > 0 {
		phase = strings.Join(section.Design.Phases, ", ")
	}

	inclusion, exclusion := splitEligibility(section.Eligibility.EligibilityCriteria)

	trial := MappedClinicalTrial{
		NCTID:               section.Identification.NCTID,
		Title:               section.Identification.BriefTitle,
		Description:         description,
		Sponsor:             section.Sponsor.LeadSponsor.Name,
		Phase:               phase,
		Status:              strings.ToLower(section.Status.OverallStatus),
		Conditions:          append([]string{}, section.Conditions.Conditions...),
		EligibilityCriteria: inclusion,
		ExclusionCriteria:   exclusion,
		Locations:           mapLocations(section.Locations.Locations),
		AgeRange:            mapAgeRange(section.Eligibility.MinimumAge, section.Eligibility.MaximumAge),
		GenderRestriction:   section.Eligibility.Sex,
		StudyType:           section.Design.StudyType,
		SourceURL:           fmt.Sprintf(studyURLBase, section.Identification.NCTID),
	}

	if section.Status.LastUpdatePost.Date != "" {
		if parsed, err := time.Parse("2006-01-02", section.Status.LastUpdatePost.Date); err == nil {
			trial.LastUpdated = parsed
		}
	}

	return trial
}

// mapAgeRange parses registry age strings like "18 Years" by extracting
// the first integer substring. A range is emitted only when both bounds
// parse.
func mapAgeRange(minimumAge, maximumAge string) *AgeRange {
	minVal, minOK := parseAge(minimumAge)
	maxVal, maxOK := parseAge(maximumAge)
	if !minOK || !maxOK {
		return nil
	}
	return &AgeRange{Min: minVal, Max: maxVal}
}

func parseAge(age string) (int, bool) {
	digits := firstInteger.FindString(age)
	if digits == "" {
		return 0, false
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return value, true
}

// mapLocations builds a "city, state, country" string per facility,
// dropping entries that reduce to separator characters only.
func mapLocations(locations []facilityLocation) []string {
	out := []string{}
	for _, loc := range locations {
		formatted := fmt.Sprintf("%s, %s, %s", loc.City, loc.State, loc.Country)
		if strings.Trim(formatted, ", ") == "" {
			continue
		}
		out = append(out, formatted)
	}
	return out
}

// splitEligibility divides the registry's free-text criteria into
// inclusion and exclusion lists at the "Exclusion Criteria" marker.
// Bullet prefixes and section headers are stripped.
func splitEligibility(text string) ([]string, []string) {
	inclusion := []string{}
	exclusion := []string{}
	if strings.TrimSpace(text) == "" {
		return inclusion, exclusion
	}

	target := &inclusion
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lowered := strings.ToLower(trimmed)
		if strings.HasPrefix(lowered, "exclusion criteria") {
			target = &exclusion
			continue
		}
		if strings.HasPrefix(lowered, "inclusion criteria") {
			continue
		}
		trimmed = strings.TrimLeft(trimmed, "*-• \t")
		if trimmed == "" {
			continue
		}
		*target = append(*target, trimmed)
	}

	return inclusion, exclusion
}

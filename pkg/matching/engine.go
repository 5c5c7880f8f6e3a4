package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/trialscout/platform/pkg/registry"
)

// searchAgeSpread widens the patient's age into a +/-5 year window before
// checking overlap with a trial's eligibility range.
const searchAgeSpread = 5

// Engine filters, deduplicates, and scores trial candidates. It is
// stateless; all mutation happens on the service layer.
type Engine struct{}

// FindMatches merges registry and local trials, applies the eligibility
// filters, and returns scored candidates ordered by descending relevance.
// The merge is deterministic: registry order first, then local order.
func (e Engine) FindMatches(conditions []string, profile PatientProfile, registryTrials []registry.MappedClinicalTrial, localTrials []LocalTrial) []CandidateMatch {
	merged := e.Merge(registryTrials, localTrials)

	candidates := []CandidateMatch{}
	for _, trial := range merged {
		if !e.PassesAgeFilter(trial, profile.Age) {
			continue
		}
		if !e.PassesGenderFilter(trial, profile.Gender) {
			continue
		}
		score, reason := e.Score(conditions, trial)
		candidates = append(candidates, CandidateMatch{
			Trial:          trial,
			RelevanceScore: score,
			MatchReason:    reason,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RelevanceScore > candidates[j].RelevanceScore
	})
	return candidates
}

// PassesAgeFilter reports whether the patient's search window
// [age-5, age+5] overlaps the trial's eligibility range. Trials without
// a range always pass.
func (e Engine) PassesAgeFilter(trial registry.MappedClinicalTrial, age int) bool {
	if trial.AgeRange == nil {
		return true
	}
	patientMin := age - searchAgeSpread
	patientMax := age + searchAgeSpread
	return patientMin <= trial.AgeRange.Max && patientMax >= trial.AgeRange.Min
}

// PassesGenderFilter matches case-insensitively, with "all" always
// passing and the f/m shorthand treated as female/male.
func (e Engine) PassesGenderFilter(trial registry.MappedClinicalTrial, gender string) bool {
	restriction := strings.ToLower(strings.TrimSpace(trial.GenderRestriction))
	if restriction == "" || restriction == "all" {
		return true
	}
	patient := strings.ToLower(strings.TrimSpace(gender))
	if patient == "" || patient == "all" {
		return true
	}
	return expandGender(patient) == expandGender(restriction)
}

func expandGender(g string) string {
	switch g {
	case "f":
		return "female"
	case "m":
		return "male"
	}
	return g
}

// Merge keeps registry results as-is and appends local trials that are
// not already present. When a local record carries an NCT ID the
// comparison is exact; otherwise it falls back to checking whether any
// registry NCT ID appears as a substring of the local title. The
// substring check is a known-fragile heuristic kept for compatibility.
func (e Engine) Merge(registryTrials []registry.MappedClinicalTrial, localTrials []LocalTrial) []registry.MappedClinicalTrial {
	merged := append([]registry.MappedClinicalTrial{}, registryTrials...)

	for _, local := range localTrials {
		if localAlreadyPresent(registryTrials, local) {
			continue
		}
		merged = append(merged, local.AsMapped())
	}
	return merged
}

func localAlreadyPresent(registryTrials []registry.MappedClinicalTrial, local LocalTrial) bool {
	for _, rt := range registryTrials {
		if rt.NCTID == "" {
			continue
		}
		if local.NCTID != "" && local.NCTID == rt.NCTID {
			return true
		}
		if strings.Contains(local.Title, rt.NCTID) {
			return true
		}
	}
	return false
}

// Score rates a trial by how many of the searched conditions appear in
// its condition list, title, or description.
func (e Engine) Score(conditions []string, trial registry.MappedClinicalTrial) (float64, string) {
	if len(conditions) == 0 {
		return 0, "no conditions searched"
	}

	matched := []string{}
	for _, condition := range conditions {
		if trialMentionsCondition(trial, condition) {
			matched = append(matched, condition)
		}
	}

	score := float64(len(matched)) / float64(len(conditions))
	if score > 1 {
		score = 1
	}
	if len(matched) == 0 {
		return 0, "returned by condition search"
	}
	return score, fmt.Sprintf("matches conditions: %s", strings.Join(matched, ", "))
}

func trialMentionsCondition(trial registry.MappedClinicalTrial, condition string) bool {
	needle := strings.ToLower(condition)
	for _, c := range trial.Conditions {
		if strings.Contains(strings.ToLower(c), needle) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(trial.Title), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(trial.Description), needle)
}

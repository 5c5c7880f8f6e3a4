package registry

import "time"

// Status is the internal trial-status vocabulary. It is translated to the
// registry's own enum when a query is built.
type Status string

const (
	StatusRecruiting       Status = "recruiting"
	StatusActive           Status = "active"
	StatusCompleted        Status = "completed"
	StatusNotYetRecruiting Status = "not_yet_recruiting"
)

var statusToRegistry = map[Status]string{
	StatusRecruiting:       "RECRUITING",
	StatusActive:           "ACTIVE_NOT_RECRUITING",
	StatusCompleted:        "COMPLETED",
	StatusNotYetRecruiting: "NOT_YET_RECRUITING",
}

type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type TrialSearchParams struct {
	Conditions []string `json:"conditions"`
	AgeRange   *AgeRange `json:"ageRange,omitempty"`
	Gender     string   `json:"gender,omitempty"`
	Location   string   `json:"location,omitempty"`
	Status     Status   `json:"status,omitempty"`
	Phase      []string `json:"phase,omitempty"`
	MaxResults int      `json:"maxResults,omitempty"`
}

// MappedClinicalTrial is the flat domain view of one registry study
// record. It is derived deterministically and never mutated after
// construction.
type MappedClinicalTrial struct {
	NCTID               string    `json:"nctId"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Sponsor             string    `json:"sponsor"`
	Phase               string    `json:"phase"`
	Status              string    `json:"status"`
	Conditions          []string  `json:"conditions"`
	EligibilityCriteria []string  `json:"eligibilityCriteria"`
	ExclusionCriteria   []string  `json:"exclusionCriteria"`
	Locations           []string  `json:"locations"`
	AgeRange            *AgeRange `json:"ageRange,omitempty"`
	GenderRestriction   string    `json:"genderRestriction,omitempty"`
	StudyType           string    `json:"studyType"`
	LastUpdated         time.Time `json:"lastUpdated"`
	SourceURL           string    `json:"sourceUrl"`
}

type SearchResult struct {
	Trials     []MappedClinicalTrial `json:"trials"`
	TotalCount int                   `json:"totalCount"`
}

// Registry wire format (deeply nested, v2 API shape).

type searchResponse struct {
	Studies       []studyRecord `json:"studies"`
	TotalCount    int           `json:"totalCount"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

type studyRecord struct {
	ProtocolSection protocolSection `json:"protocolSection"`
}

type protocolSection struct {
	Identification identificationModule `json:"identificationModule"`
	Status         statusModule         `json:"statusModule"`
	Description    descriptionModule    `json:"descriptionModule"`
	Conditions     conditionsModule     `json:"conditionsModule"`
	Design         designModule         `json:"designModule"`
	Sponsor        sponsorModule        `json:"sponsorCollaboratorsModule"`
	Eligibility    eligibilityModule    `json:"eligibilityModule"`
	Locations      locationsModule      `json:"contactsLocationsModule"`
}

type identificationModule struct {
	NCTID      string `json:"nctId"`
	BriefTitle string `json:"briefTitle"`
}

type statusModule struct {
	OverallStatus  string     `json:"overallStatus"`
	LastUpdatePost dateStruct `json:"lastUpdatePostDateStruct"`
}

type dateStruct struct {
	Date string `json:"date"`
}

type descriptionModule struct {
	BriefSummary        string `json:"briefSummary"`
	DetailedDescription string `json:"detailedDescription"`
}

type conditionsModule struct {
	Conditions []string `json:"conditions"`
}

type designModule struct {
	Phases    []string `json:"phases"`
	StudyType string   `json:"studyType"`
}

type sponsorModule struct {
	LeadSponsor leadSponsor `json:"leadSponsor"`
}

type leadSponsor struct {
	Name string `json:"name"`
}

type eligibilityModule struct {
	EligibilityCriteria string `json:"eligibilityCriteria"`
	MinimumAge          string `json:"minimumAge"`
	MaximumAge          string `json:"maximumAge"`
	Sex                 string `json:"sex"`
}

type locationsModule struct {
	Locations []facilityLocation `json:"locations"`
}

type facilityLocation struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

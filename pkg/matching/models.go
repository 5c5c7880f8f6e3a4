package matching

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/trialscout/platform/pkg/registry"
)

type ConsentStatus string

const (
	ConsentPending  ConsentStatus = "pending"
	ConsentApproved ConsentStatus = "approved"
	ConsentDeclined ConsentStatus = "declined"
	ConsentEnrolled ConsentStatus = "enrolled"
)

func ValidConsentStatus(status ConsentStatus) bool {
	switch status {
	case ConsentPending, ConsentApproved, ConsentDeclined, ConsentEnrolled:
		return true
	}
	return false
}

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationViewed  NotificationStatus = "viewed"
)

// ConsentEvent is one immutable entry in a match's consent history.
type ConsentEvent struct {
	Status    ConsentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	ChangedBy string        `json:"changedBy"`
	Note      string        `json:"note,omitempty"`
	UserID    string        `json:"userId,omitempty"`
}

// TrialMatch links a patient, a trial, and a consultation. ConsentStatus
// is always derived from the last history entry, never set on its own.
type TrialMatch struct {
	ID                   uuid.UUID                    `json:"id"`
	PatientID            string                       `json:"patientId"`
	ConsultationID       string                       `json:"consultationId,omitempty"`
	Trial                registry.MappedClinicalTrial `json:"trial"`
	RelevanceScore       float64                      `json:"relevanceScore"`
	MatchReason          string                       `json:"matchReason"`
	NotificationStatus   NotificationStatus           `json:"notificationStatus"`
	ConsentStatus        ConsentStatus                `json:"consentStatus"`
	ConsentStatusHistory []ConsentEvent               `json:"consentStatusHistory"`
	CreatedAt            time.Time                    `json:"createdAt"`
	UpdatedAt            time.Time                    `json:"updatedAt"`
}

// NewTrialMatch seeds the consent history with a pending entry so the
// derived status is defined from the start.
func NewTrialMatch(patientID, consultationID string, trial registry.MappedClinicalTrial, score float64, reason string, now time.Time) *TrialMatch {
	seed := ConsentEvent{Status: ConsentPending, Timestamp: now, ChangedBy: "system"}
	return &TrialMatch{
		ID:                   uuid.New(),
		PatientID:            patientID,
		ConsultationID:       consultationID,
		Trial:                trial,
		RelevanceScore:       score,
		MatchReason:          reason,
		NotificationStatus:   NotificationPending,
		ConsentStatus:        seed.Status,
		ConsentStatusHistory: []ConsentEvent{seed},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// TransitionConsent appends a history entry and re-derives the current
// status. Any state may move to any other state; ordering is the
// patient's decision, not the system's.
func (m *TrialMatch) TransitionConsent(status ConsentStatus, changedBy, note, userID string, now time.Time) error {
	if !ValidConsentStatus(status) {
		return fmt.Errorf("unknown consent status %q", status)
	}
	if changedBy == "" {
		changedBy = "patient"
	}
	m.ConsentStatusHistory = append(m.ConsentStatusHistory, ConsentEvent{
		Status:    status,
		Timestamp: now,
		ChangedBy: changedBy,
		Note:      note,
		UserID:    userID,
	})
	m.ConsentStatus = m.CurrentConsent()
	m.UpdatedAt = now
	return nil
}

// CurrentConsent derives the status from the most recent history entry.
func (m *TrialMatch) CurrentConsent() ConsentStatus {
	if len(m.ConsentStatusHistory) == 0 {
		return ConsentPending
	}
	return m.ConsentStatusHistory[len(m.ConsentStatusHistory)-1].Status
}

// PatientProfile is the eligibility-relevant slice of a patient record.
type PatientProfile struct {
	PatientID string `json:"patientId"`
	Age       int    `json:"age"`
	Gender    string `json:"gender,omitempty"`
	Location  string `json:"location,omitempty"`
}

// LocalTrial is a trial registered directly with the platform rather
// than fetched from the public registry.
type LocalTrial struct {
	ID                uuid.UUID `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description,omitempty"`
	Sponsor           string    `json:"sponsor,omitempty"`
	Phase             string    `json:"phase,omitempty"`
	Status            string    `json:"status,omitempty"`
	Conditions        []string  `json:"conditions"`
	NCTID             string    `json:"nctId,omitempty"`
	AgeMin            *int      `json:"ageMin,omitempty"`
	AgeMax            *int      `json:"ageMax,omitempty"`
	GenderRestriction string    `json:"genderRestriction,omitempty"`
	Location          string    `json:"location,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// AsMapped builds the synthetic registry view of a local trial.
func (t LocalTrial) AsMapped() registry.MappedClinicalTrial {
	mapped := registry.MappedClinicalTrial{
		NCTID:               t.NCTID,
		Title:               t.Title,
		Description:         t.Description,
		Sponsor:             t.Sponsor,
		Phase:               t.Phase,
		Status:              t.Status,
		Conditions:          append([]string{}, t.Conditions...),
		EligibilityCriteria: []string{},
		ExclusionCriteria:   []string{},
		Locations:           []string{},
		GenderRestriction:   t.GenderRestriction,
		StudyType:           "Local",
		LastUpdated:         t.CreatedAt,
		SourceURL:           "local://" + t.ID.String(),
	}
	if t.Location != "" {
		mapped.Locations = append(mapped.Locations, t.Location)
	}
	if t.AgeMin != nil && t.AgeMax != nil {
		mapped.AgeRange = &registry.AgeRange{Min: *t.AgeMin, Max: *t.AgeMax}
	}
	return mapped
}

// CandidateMatch is a scored trial before persistence.
type CandidateMatch struct {
	Trial          registry.MappedClinicalTrial `json:"trial"`
	RelevanceScore float64                      `json:"relevanceScore"`
	MatchReason    string                       `json:"matchReason"`
}

// StageError reports a failed pipeline stage alongside a partial result.
type StageError struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// MatchOutcome is the combined result of a match run. A registry failure
// after successful normalization yields local-only matches plus a stage
// error, never a silently dropped stage.
type MatchOutcome struct {
	Conditions         []string     `json:"conditions"`
	Matches            []TrialMatch `json:"matches"`
	TotalRegistryCount int          `json:"totalRegistryCount"`
	StageErrors        []StageError `json:"stageErrors,omitempty"`
}

package matching

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/common/logger"
	"github.com/trialscout/platform/pkg/entities"
	"github.com/trialscout/platform/pkg/extraction"
	"github.com/trialscout/platform/pkg/registry"
)

func TestMain(m *testing.M) {
	logger.Init("matching-test")
	os.Exit(m.Run())
}

type fakeSearcher struct {
	result registry.SearchResult
	err    error
	params registry.TrialSearchParams
}

func (f *fakeSearcher) Search(ctx context.Context, params registry.TrialSearchParams) (registry.SearchResult, error) {
	f.params = params
	return f.result, f.err
}

type memoryStore struct {
	locals  []LocalTrial
	matches map[uuid.UUID]*TrialMatch
	listErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{matches: make(map[uuid.UUID]*TrialMatch)}
}

func (s *memoryStore) CreateLocalTrial(ctx context.Context, trial LocalTrial) (LocalTrial, error) {
	if trial.ID == uuid.Nil {
		trial.ID = uuid.New()
	}
	s.locals = append(s.locals, trial)
	return trial, nil
}

func (s *memoryStore) ListLocalTrials(ctx context.Context) ([]LocalTrial, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.locals, nil
}

func (s *memoryStore) SaveMatch(ctx context.Context, match *TrialMatch) error {
	copied := *match
	s.matches[match.ID] = &copied
	return nil
}

func (s *memoryStore) UpdateMatch(ctx context.Context, match *TrialMatch) error {
	copied := *match
	s.matches[match.ID] = &copied
	return nil
}

func (s *memoryStore) GetMatch(ctx context.Context, id uuid.UUID) (*TrialMatch, error) {
	match, ok := s.matches[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "match not found")
	}
	copied := *match
	return &copied, nil
}

func (s *memoryStore) ListMatchesByPatient(ctx context.Context, patientID string) ([]TrialMatch, error) {
	var out []TrialMatch
	for _, m := range s.matches {
		if m.PatientID == patientID {
			out = append(out, *m)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	events []string
	err    error
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	p.events = append(p.events, eventType)
	return p.err
}

func newTestService(t *testing.T, searcher RegistrySearcher, store Store, publisher Publisher) *Service {
	t.Helper()
	extractor, err := extraction.NewExtractor(extraction.DefaultRules())
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	return NewService(searcher, store, extractor, publisher)
}

func TestFindMatchesFromTranscriptFallback(t *testing.T) {
	searcher := &fakeSearcher{result: registry.SearchResult{
		Trials: []registry.MappedClinicalTrial{
			{NCTID: "NCT1", Title: "Diabetes Study", Conditions: []string{"Diabetes"}},
		},
		TotalCount: 1,
	}}
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	service := newTestService(t, searcher, store, publisher)

	outcome, err := service.FindMatches(context.Background(), MatchRequest{
		PatientID:  "patient-1",
		Profile:    PatientProfile{Age: 45},
		Transcript: "Patient diagnosed with diabetes and hypertension, no allergies",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantConditions := []string{"diabetes", "hypertension"}
	if len(outcome.Conditions) != 2 || outcome.Conditions[0] != wantConditions[0] || outcome.Conditions[1] != wantConditions[1] {
		t.Fatalf("conditions = %v, want %v", outcome.Conditions, wantConditions)
	}
	if got := searcher.params.Conditions; len(got) != 2 {
		t.Fatalf("registry query conditions = %v", got)
	}
	if len(outcome.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(outcome.Matches))
	}
	if outcome.Matches[0].ConsentStatus != ConsentPending {
		t.Fatalf("new match must be pending, got %s", outcome.Matches[0].ConsentStatus)
	}
	if len(publisher.events) != 1 || publisher.events[0] != "match.created" {
		t.Fatalf("expected match.created event, got %v", publisher.events)
	}
	if len(store.matches) != 1 {
		t.Fatalf("expected persisted match, got %d", len(store.matches))
	}
}

func TestFindMatchesPrefersStructuredEntities(t *testing.T) {
	searcher := &fakeSearcher{result: registry.SearchResult{}}
	service := newTestService(t, searcher, newMemoryStore(), nil)

	_, err := service.FindMatches(context.Background(), MatchRequest{
		PatientID: "patient-1",
		Profile:   PatientProfile{Age: 30},
		Entities: &entities.StructuredEntities{
			Conditions: []entities.ConditionEntity{{Name: "asthma"}},
		},
		Transcript: "diagnosed with diabetes",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(searcher.params.Conditions) != 1 || searcher.params.Conditions[0] != "asthma" {
		t.Fatalf("structured conditions must win, queried %v", searcher.params.Conditions)
	}
}

func TestFindMatchesFailsWithoutMedicalData(t *testing.T) {
	service := newTestService(t, &fakeSearcher{}, newMemoryStore(), nil)

	_, err := service.FindMatches(context.Background(), MatchRequest{PatientID: "p"})
	if apperrors.KindOf(err) != apperrors.KindNoMedicalData {
		t.Fatalf("expected no_medical_data, got %v", err)
	}

	_, err = service.FindMatches(context.Background(), MatchRequest{
		PatientID:  "p",
		Transcript: "patient slept well and ate breakfast",
	})
	if apperrors.KindOf(err) != apperrors.KindNoConditionsExtracted {
		t.Fatalf("expected no_conditions_extracted, got %v", err)
	}
}

func TestRegistryFailureYieldsPartialResult(t *testing.T) {
	searcher := &fakeSearcher{err: apperrors.New(apperrors.KindUpstreamAPI, "registry down")}
	store := newMemoryStore()
	ageMin, ageMax := 30, 60
	store.locals = []LocalTrial{{
		ID:         uuid.New(),
		Title:      "Local Diabetes Study",
		Conditions: []string{"diabetes"},
		AgeMin:     &ageMin,
		AgeMax:     &ageMax,
	}}
	service := newTestService(t, searcher, store, nil)

	outcome, err := service.FindMatches(context.Background(), MatchRequest{
		PatientID:  "patient-1",
		Profile:    PatientProfile{Age: 40},
		Transcript: "diagnosed with diabetes",
	})
	if err != nil {
		t.Fatalf("partial result must not be an error: %v", err)
	}
	if len(outcome.StageErrors) != 1 || outcome.StageErrors[0].Stage != "registry_search" {
		t.Fatalf("expected registry stage error, got %+v", outcome.StageErrors)
	}
	if outcome.StageErrors[0].Kind != string(apperrors.KindUpstreamAPI) {
		t.Fatalf("stage error kind = %q", outcome.StageErrors[0].Kind)
	}
	if len(outcome.Matches) != 1 || outcome.Matches[0].Trial.StudyType != "Local" {
		t.Fatalf("expected local-only match, got %+v", outcome.Matches)
	}
}

func TestPublishFailureDoesNotAbortMatchRun(t *testing.T) {
	searcher := &fakeSearcher{result: registry.SearchResult{
		Trials:     []registry.MappedClinicalTrial{{NCTID: "NCT2", Title: "Asthma Study", Conditions: []string{"Asthma"}}},
		TotalCount: 1,
	}}
	publisher := &recordingPublisher{err: errors.New("broker unavailable")}
	service := newTestService(t, searcher, newMemoryStore(), publisher)

	outcome, err := service.FindMatches(context.Background(), MatchRequest{
		PatientID:  "patient-1",
		Profile:    PatientProfile{Age: 25},
		Transcript: "patient has asthma",
	})
	if err != nil {
		t.Fatalf("publish failure must be observed, not propagated: %v", err)
	}
	if len(outcome.Matches) != 1 {
		t.Fatalf("expected match despite publish failure, got %d", len(outcome.Matches))
	}
}

func TestUpdateConsentPersistsAndPublishes(t *testing.T) {
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	service := newTestService(t, &fakeSearcher{}, store, publisher)

	match := NewTrialMatch("patient-1", "", registry.MappedClinicalTrial{NCTID: "NCT3"}, 0.7, "", time.Now().UTC())
	if err := store.SaveMatch(context.Background(), match); err != nil {
		t.Fatalf("seed: %v", err)
	}

	updated, err := service.UpdateConsent(context.Background(), match.ID, ConsentApproved, "patient", "", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ConsentStatus != ConsentApproved || len(updated.ConsentStatusHistory) != 2 {
		t.Fatalf("unexpected consent state: %+v", updated)
	}

	stored, _ := store.GetMatch(context.Background(), match.ID)
	if stored.ConsentStatus != ConsentApproved {
		t.Fatalf("consent not persisted, got %s", stored.ConsentStatus)
	}
	if len(publisher.events) != 1 || publisher.events[0] != "consent.updated" {
		t.Fatalf("expected consent.updated event, got %v", publisher.events)
	}
}

func TestUpdateConsentUnknownMatch(t *testing.T) {
	service := newTestService(t, &fakeSearcher{}, newMemoryStore(), nil)
	_, err := service.UpdateConsent(context.Background(), uuid.New(), ConsentApproved, "patient", "", "")
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

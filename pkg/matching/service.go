package matching

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/common/logger"
	"github.com/trialscout/platform/pkg/entities"
	"github.com/trialscout/platform/pkg/extraction"
	"github.com/trialscout/platform/pkg/registry"
)

const eventSource = "matching-service"

// RegistrySearcher is the slice of the registry client the service needs.
type RegistrySearcher interface {
	Search(ctx context.Context, params registry.TrialSearchParams) (registry.SearchResult, error)
}

// Store persists local trials and matches.
type Store interface {
	CreateLocalTrial(ctx context.Context, trial LocalTrial) (LocalTrial, error)
	ListLocalTrials(ctx context.Context) ([]LocalTrial, error)
	SaveMatch(ctx context.Context, match *TrialMatch) error
	UpdateMatch(ctx context.Context, match *TrialMatch) error
	GetMatch(ctx context.Context, id uuid.UUID) (*TrialMatch, error)
	ListMatchesByPatient(ctx context.Context, patientID string) ([]TrialMatch, error)
}

// Publisher is the event-bus surface. Publishing is fire-and-observe:
// failures are logged and never fail the primary operation.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// MatchRequest carries everything a match run needs. Structured entities
// take precedence; the transcript is only mined when they are absent.
type MatchRequest struct {
	PatientID      string                       `json:"patientId"`
	ConsultationID string                       `json:"consultationId,omitempty"`
	Profile        PatientProfile               `json:"profile"`
	Entities       *entities.StructuredEntities `json:"entities,omitempty"`
	Transcript     string                       `json:"transcript,omitempty"`
	Status         registry.Status              `json:"status,omitempty"`
	Location       string                       `json:"location,omitempty"`
	MaxResults     int                          `json:"maxResults,omitempty"`
}

type Service struct {
	engine    Engine
	registry  RegistrySearcher
	store     Store
	extractor *extraction.Extractor
	publisher Publisher

	// guards consent-history appends across concurrent requests
	consentMu sync.Mutex
}

func NewService(searcher RegistrySearcher, store Store, extractor *extraction.Extractor, publisher Publisher) *Service {
	return &Service{
		registry:  searcher,
		store:     store,
		extractor: extractor,
		publisher: publisher,
	}
}

// FindMatches runs the full pipeline: resolve conditions, query the
// registry, merge with local trials, filter, score, and persist. Stage
// failures after condition resolution degrade to a partial result with a
// recorded stage error instead of aborting the run.
func (s *Service) FindMatches(ctx context.Context, req MatchRequest) (*MatchOutcome, error) {
	conditions, err := s.resolveConditions(req)
	if err != nil {
		return nil, err
	}

	outcome := &MatchOutcome{Conditions: conditions}

	registryTrials := []registry.MappedClinicalTrial{}
	searchResult, err := s.registry.Search(ctx, registry.TrialSearchParams{
		Conditions: conditions,
		Gender:     req.Profile.Gender,
		Location:   req.Location,
		Status:     req.Status,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		outcome.StageErrors = append(outcome.StageErrors, stageError("registry_search", err))
		logger.Log.WithError(err).Warn("registry search failed, continuing with local trials")
	} else {
		registryTrials = searchResult.Trials
		outcome.TotalRegistryCount = searchResult.TotalCount
	}

	localTrials, err := s.store.ListLocalTrials(ctx)
	if err != nil {
		outcome.StageErrors = append(outcome.StageErrors, stageError("local_trials", err))
		logger.Log.WithError(err).Warn("local trial lookup failed, continuing with registry results")
		localTrials = nil
	}

	candidates := s.engine.FindMatches(conditions, req.Profile, registryTrials, localTrials)

	now := time.Now().UTC()
	for _, candidate := range candidates {
		match := NewTrialMatch(req.PatientID, req.ConsultationID, candidate.Trial, candidate.RelevanceScore, candidate.MatchReason, now)
		if err := s.store.SaveMatch(ctx, match); err != nil {
			outcome.StageErrors = append(outcome.StageErrors, stageError("persist_match", err))
			logger.Log.WithError(err).WithField("nct_id", candidate.Trial.NCTID).Error("failed to persist match")
			continue
		}
		outcome.Matches = append(outcome.Matches, *match)
		s.publish(ctx, "match.created", map[string]interface{}{
			"match_id":   match.ID.String(),
			"patient_id": match.PatientID,
			"nct_id":     match.Trial.NCTID,
			"score":      match.RelevanceScore,
		})
	}
	if outcome.Matches == nil {
		outcome.Matches = []TrialMatch{}
	}

	return outcome, nil
}

// resolveConditions prefers structured entities and falls back to mining
// the transcript.
func (s *Service) resolveConditions(req MatchRequest) ([]string, error) {
	if req.Entities != nil {
		if names := req.Entities.ConditionNames(); len(names) > 0 {
			return names, nil
		}
	}
	if req.Transcript == "" {
		return nil, apperrors.New(apperrors.KindNoMedicalData, "no structured entities or transcript provided")
	}
	conditions := s.extractor.Extract(req.Transcript)
	if len(conditions) == 0 {
		return nil, apperrors.New(apperrors.KindNoConditionsExtracted, "no conditions found in transcript")
	}
	return conditions, nil
}

// UpdateConsent appends a consent transition and re-persists the match.
func (s *Service) UpdateConsent(ctx context.Context, matchID uuid.UUID, status ConsentStatus, changedBy, note, userID string) (*TrialMatch, error) {
	s.consentMu.Lock()
	defer s.consentMu.Unlock()

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if err := match.TransitionConsent(status, changedBy, note, userID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateMatch(ctx, match); err != nil {
		return nil, err
	}

	s.publish(ctx, "consent.updated", map[string]interface{}{
		"match_id":   match.ID.String(),
		"patient_id": match.PatientID,
		"status":     string(match.ConsentStatus),
	})
	return match, nil
}

func (s *Service) ConsentHistory(ctx context.Context, matchID uuid.UUID) ([]ConsentEvent, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	return match.ConsentStatusHistory, nil
}

func (s *Service) GetMatch(ctx context.Context, matchID uuid.UUID) (*TrialMatch, error) {
	return s.store.GetMatch(ctx, matchID)
}

func (s *Service) ListMatchesByPatient(ctx context.Context, patientID string) ([]TrialMatch, error) {
	return s.store.ListMatchesByPatient(ctx, patientID)
}

// MarkNotified flips a pending notification to sent. Called by the
// notification dispatcher.
func (s *Service) MarkNotified(ctx context.Context, matchID uuid.UUID) error {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.NotificationStatus != NotificationPending {
		return nil
	}
	match.NotificationStatus = NotificationSent
	match.UpdatedAt = time.Now().UTC()
	return s.store.UpdateMatch(ctx, match)
}

// MarkViewed records that the patient has opened the match.
func (s *Service) MarkViewed(ctx context.Context, matchID uuid.UUID) (*TrialMatch, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	match.NotificationStatus = NotificationViewed
	match.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateMatch(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *Service) RegisterLocalTrial(ctx context.Context, trial LocalTrial) (LocalTrial, error) {
	return s.store.CreateLocalTrial(ctx, trial)
}

func (s *Service) ListLocalTrials(ctx context.Context) ([]LocalTrial, error) {
	return s.store.ListLocalTrials(ctx)
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, eventType, eventSource, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("event publish failed")
	}
}

func stageError(stage string, err error) StageError {
	return StageError{
		Stage:   stage,
		Kind:    string(apperrors.KindOf(err)),
		Message: err.Error(),
	}
}

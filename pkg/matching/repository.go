package matching

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/trialscout/platform/pkg/common/apperrors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type localTrialModel struct {
	ID                uuid.UUID      `gorm:"primaryKey;column:id"`
	Title             string         `gorm:"column:title"`
	Description       string         `gorm:"column:description"`
	Sponsor           string         `gorm:"column:sponsor"`
	Phase             string         `gorm:"column:phase"`
	Status            string         `gorm:"column:status"`
	Conditions        datatypes.JSON `gorm:"column:conditions"`
	NCTID             string         `gorm:"column:nct_id;index"`
	AgeMin            *int           `gorm:"column:age_min"`
	AgeMax            *int           `gorm:"column:age_max"`
	GenderRestriction string         `gorm:"column:gender_restriction"`
	Location          string         `gorm:"column:location"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
}

func (localTrialModel) TableName() string { return "local_trials" }

type trialMatchModel struct {
	ID                 uuid.UUID      `gorm:"primaryKey;column:id"`
	PatientID          string         `gorm:"column:patient_id;index"`
	ConsultationID     string         `gorm:"column:consultation_id;index"`
	NCTID              string         `gorm:"column:nct_id"`
	Trial              datatypes.JSON `gorm:"column:trial"`
	RelevanceScore     float64        `gorm:"column:relevance_score"`
	MatchReason        string         `gorm:"column:match_reason"`
	NotificationStatus string         `gorm:"column:notification_status"`
	ConsentStatus      string         `gorm:"column:consent_status"`
	ConsentHistory     datatypes.JSON `gorm:"column:consent_history"`
	CreatedAt          time.Time      `gorm:"column:created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at"`
}

func (trialMatchModel) TableName() string { return "trial_matches" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&localTrialModel{}, &trialMatchModel{})
}

func (r *Repository) CreateLocalTrial(ctx context.Context, trial LocalTrial) (LocalTrial, error) {
	if trial.ID == uuid.Nil {
		trial.ID = uuid.New()
	}
	if trial.CreatedAt.IsZero() {
		trial.CreatedAt = time.Now().UTC()
	}
	conditions, err := json.Marshal(trial.Conditions)
	if err != nil {
		return LocalTrial{}, err
	}

	model := localTrialModel{
		ID:                trial.ID,
		Title:             trial.Title,
		Description:       trial.Description,
		Sponsor:           trial.Sponsor,
		Phase:             trial.Phase,
		Status:            trial.Status,
		Conditions:        conditions,
		NCTID:             trial.NCTID,
		AgeMin:            trial.AgeMin,
		AgeMax:            trial.AgeMax,
		GenderRestriction: trial.GenderRestriction,
		Location:          trial.Location,
		CreatedAt:         trial.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return LocalTrial{}, err
	}
	return trial, nil
}

func (r *Repository) ListLocalTrials(ctx context.Context) ([]LocalTrial, error) {
	var models []localTrialModel
	if err := r.db.WithContext(ctx).Order("created_at asc").Find(&models).Error; err != nil {
		return nil, err
	}

	trials := make([]LocalTrial, 0, len(models))
	for _, model := range models {
		trial := LocalTrial{
			ID:                model.ID,
			Title:             model.Title,
			Description:       model.Description,
			Sponsor:           model.Sponsor,
			Phase:             model.Phase,
			Status:            model.Status,
			NCTID:             model.NCTID,
			AgeMin:            model.AgeMin,
			AgeMax:            model.AgeMax,
			GenderRestriction: model.GenderRestriction,
			Location:          model.Location,
			CreatedAt:         model.CreatedAt,
		}
		if len(model.Conditions) > 0 {
			_ = json.Unmarshal(model.Conditions, &trial.Conditions)
		}
		if trial.Conditions == nil {
			trial.Conditions = []string{}
		}
		trials = append(trials, trial)
	}
	return trials, nil
}

func (r *Repository) SaveMatch(ctx context.Context, match *TrialMatch) error {
	model, err := toMatchModel(match)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *Repository) UpdateMatch(ctx context.Context, match *TrialMatch) error {
	model, err := toMatchModel(match)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *Repository) GetMatch(ctx context.Context, id uuid.UUID) (*TrialMatch, error) {
	var model trialMatchModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.KindNotFound, "match "+id.String()+" not found")
	}
	if err != nil {
		return nil, err
	}
	return fromMatchModel(model)
}

func (r *Repository) ListMatchesByPatient(ctx context.Context, patientID string) ([]TrialMatch, error) {
	var models []trialMatchModel
	if err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Order("created_at desc").Find(&models).Error; err != nil {
		return nil, err
	}

	matches := make([]TrialMatch, 0, len(models))
	for _, model := range models {
		match, err := fromMatchModel(model)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *match)
	}
	return matches, nil
}

func toMatchModel(match *TrialMatch) (trialMatchModel, error) {
	trial, err := json.Marshal(match.Trial)
	if err != nil {
		return trialMatchModel{}, err
	}
	history, err := json.Marshal(match.ConsentStatusHistory)
	if err != nil {
		return trialMatchModel{}, err
	}
	return trialMatchModel{
		ID:                 match.ID,
		PatientID:          match.PatientID,
		ConsultationID:     match.ConsultationID,
		NCTID:              match.Trial.NCTID,
		Trial:              trial,
		RelevanceScore:     match.RelevanceScore,
		MatchReason:        match.MatchReason,
		NotificationStatus: string(match.NotificationStatus),
		ConsentStatus:      string(match.ConsentStatus),
		ConsentHistory:     history,
		CreatedAt:          match.CreatedAt,
		UpdatedAt:          match.UpdatedAt,
	}, nil
}

func fromMatchModel(model trialMatchModel) (*TrialMatch, error) {
	match := &TrialMatch{
		ID:                 model.ID,
		PatientID:          model.PatientID,
		ConsultationID:     model.ConsultationID,
		RelevanceScore:     model.RelevanceScore,
		MatchReason:        model.MatchReason,
		NotificationStatus: NotificationStatus(model.NotificationStatus),
		ConsentStatus:      ConsentStatus(model.ConsentStatus),
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
	if len(model.Trial) > 0 {
		if err := json.Unmarshal(model.Trial, &match.Trial); err != nil {
			return nil, err
		}
	}
	if len(model.ConsentHistory) > 0 {
		if err := json.Unmarshal(model.ConsentHistory, &match.ConsentStatusHistory); err != nil {
			return nil, err
		}
	}
	if match.ConsentStatusHistory == nil {
		match.ConsentStatusHistory = []ConsentEvent{}
	}
	// The stored column is a denormalized copy; history stays the truth.
	match.ConsentStatus = match.CurrentConsent()
	return match, nil
}

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/entities"
	"github.com/trialscout/platform/pkg/retry"
)

const extractionSystemPrompt = "You are a clinical documentation assistant. Extract medical entities from consultation transcripts. Respond with strict JSON only."

const extractionPromptTemplate = `Extract the medical entities from the following consultation transcript.
Respond with a single JSON object with exactly these keys:
conditions, medications, allergies, symptoms, labResults, comorbidities, vitals.

Each of conditions, medications, allergies, symptoms, and comorbidities is an
array of objects. Conditions carry name, severity (mild|moderate|severe), and
status. Medications carry name, dosage, frequency, and route. Allergies carry
allergen, reaction, and severity. labResults and vitals are objects keyed by
measurement name.

Transcript:
%s`

// EntityExtractor turns a transcript into normalized structured entities
// through the LLM oracle. Transport failures are retried; parse failures
// are not, since re-asking with the same prompt rarely fixes structure.
type EntityExtractor struct {
	caller     Caller
	normalizer entities.Normalizer
	maxRetries int
	baseDelay  time.Duration
}

func NewEntityExtractor(caller Caller, normalizer entities.Normalizer) *EntityExtractor {
	return &EntityExtractor{
		caller:     caller,
		normalizer: normalizer,
		maxRetries: 3,
		baseDelay:  time.Second,
	}
}

func (e *EntityExtractor) Extract(ctx context.Context, transcript string) (entities.StructuredEntities, error) {
	if e.caller == nil {
		return entities.StructuredEntities{}, apperrors.New(apperrors.KindConfig, "entity extraction provider not configured")
	}
	if transcript == "" {
		return entities.StructuredEntities{}, apperrors.New(apperrors.KindNoMedicalData, "empty transcript")
	}

	prompt := fmt.Sprintf(extractionPromptTemplate, transcript)
	raw, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return e.caller.GenerateText(ctx, extractionSystemPrompt, prompt)
	}, retry.WithMaxRetries(e.maxRetries), retry.WithBaseDelay(e.baseDelay), retry.WithRetryIf(apperrors.Retriable))
	if err != nil {
		return entities.StructuredEntities{}, err
	}

	payload, err := parseJSONPayload(raw)
	if err != nil {
		return entities.StructuredEntities{}, err
	}
	return e.normalizer.Normalize(payload), nil
}

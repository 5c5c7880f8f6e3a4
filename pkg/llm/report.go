package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/entities"
	"github.com/trialscout/platform/pkg/retry"
)

const reportSystemPrompt = "You are a physician writing concise clinical notes. Follow the requested section layout exactly."

const reportPromptTemplate = `Write a clinical consultation report with exactly these five sections,
using these literal headers:

SUBJECTIVE:
OBJECTIVE:
ASSESSMENT:
PLAN:
ICD-10 CODES:

Base the report on the transcript and the extracted entities below.

Transcript:
%s

Extracted entities:
%s`

// ReportGenerator produces the SOAP+ICD-10 consultation report. The
// output is stored verbatim, never re-parsed into structured fields.
type ReportGenerator struct {
	caller     Caller
	maxRetries int
	baseDelay  time.Duration
}

func NewReportGenerator(caller Caller) *ReportGenerator {
	return &ReportGenerator{caller: caller, maxRetries: 3, baseDelay: time.Second}
}

func (g *ReportGenerator) Generate(ctx context.Context, transcript string, extracted entities.StructuredEntities) (string, error) {
	if g.caller == nil {
		return "", apperrors.New(apperrors.KindConfig, "report provider not configured")
	}
	if transcript == "" {
		return "", apperrors.New(apperrors.KindNoMedicalData, "empty transcript")
	}

	encoded, err := json.Marshal(extracted)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(reportPromptTemplate, transcript, string(encoded))
	return retry.Do(ctx, func(ctx context.Context) (string, error) {
		return g.caller.GenerateText(ctx, reportSystemPrompt, prompt)
	}, retry.WithMaxRetries(g.maxRetries), retry.WithBaseDelay(g.baseDelay), retry.WithRetryIf(apperrors.Retriable))
}

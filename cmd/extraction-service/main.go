package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/common/config"
	"github.com/trialscout/platform/pkg/common/logger"
	"github.com/trialscout/platform/pkg/common/middleware"
	"github.com/trialscout/platform/pkg/entities"
	"github.com/trialscout/platform/pkg/llm"
	"github.com/trialscout/platform/pkg/transcription"
)

// ExtractionService exposes the AI-facing half of the pipeline:
// transcription, entity extraction, and report generation.
type ExtractionService struct {
	transcriber *transcription.Client
	extractor   *llm.EntityExtractor
	reporter    *llm.ReportGenerator
}

func main() {
	logger.Init("extraction-service")
	cfg := config.Load()

	service := &ExtractionService{
		transcriber: transcription.NewClient(cfg.TranscriptionBaseURL, cfg.TranscriptionAPIKey),
	}

	// Each provider is optional; an unconfigured key fails only the
	// operations that need it.
	if extractCaller, err := llm.NewAnthropicCaller(cfg.ExtractionAPIKey, cfg.ExtractionModel); err != nil {
		logger.Log.WithError(err).Warn("Entity extraction provider not configured")
	} else {
		service.extractor = llm.NewEntityExtractor(extractCaller, entities.ForSchema("rich"))
	}

	if reportCaller, err := llm.NewAnthropicCaller(cfg.ReportAPIKey, cfg.ReportModel); err != nil {
		logger.Log.WithError(err).Warn("Report provider not configured")
	} else {
		service.reporter = llm.NewReportGenerator(reportCaller)
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/api/v1/transcribe", service.handleTranscribe).Methods("POST")
	router.HandleFunc("/api/v1/entities", service.handleExtractEntities).Methods("POST")
	router.HandleFunc("/api/v1/reports", service.handleGenerateReport).Methods("POST")
	router.HandleFunc("/api/v1/consultations/process", service.handleProcessConsultation).Methods("POST")

	var root http.Handler = router
	root = middleware.BodyLimit(cfg.MaxRequestBody)(root)
	root = middleware.CORS(root)
	root = middleware.Logging(root)
	root = middleware.Recovery(root)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ExtractionServicePort),
		Handler:      root,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 10 * time.Minute, // transcription polling can be slow
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ExtractionServicePort,
		}).Info("Extraction Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Extraction Service...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Extraction Service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *ExtractionService) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read audio body", http.StatusBadRequest)
		return
	}

	transcript, err := s.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		writeError(w, err, "transcription failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transcript": transcript})
}

func (s *ExtractionService) handleExtractEntities(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if s.extractor == nil {
		writeError(w, apperrors.New(apperrors.KindConfig, "entity extraction provider not configured"), "")
		return
	}

	extracted, err := s.extractor.Extract(r.Context(), req.Transcript)
	if err != nil {
		writeError(w, err, "entity extraction failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entities": extracted})
}

func (s *ExtractionService) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string                      `json:"transcript"`
		Entities   entities.StructuredEntities `json:"entities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if s.reporter == nil {
		writeError(w, apperrors.New(apperrors.KindConfig, "report provider not configured"), "")
		return
	}

	report, err := s.reporter.Generate(r.Context(), req.Transcript, req.Entities)
	if err != nil {
		writeError(w, err, "report generation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"report": report})
}

type stageError struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// handleProcessConsultation runs the full chain: transcript (given or
// transcribed from audio), then entities, then report. Later stages are
// attempted even when best-effort earlier ones fail, and every stage
// failure is reported alongside whatever was produced.
func (s *ExtractionService) handleProcessConsultation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
		Audio      []byte `json:"audio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	transcript := req.Transcript
	var stageErrors []stageError

	if transcript == "" {
		text, err := s.transcriber.Transcribe(r.Context(), req.Audio)
		if err != nil {
			// Nothing downstream can run without a transcript.
			writeError(w, err, "transcription failed")
			return
		}
		transcript = text
	}

	var extracted entities.StructuredEntities
	if s.extractor == nil {
		stageErrors = append(stageErrors, newStageError("entity_extraction", apperrors.New(apperrors.KindConfig, "entity extraction provider not configured")))
	} else if out, err := s.extractor.Extract(r.Context(), transcript); err != nil {
		stageErrors = append(stageErrors, newStageError("entity_extraction", err))
		logger.Log.WithError(err).Warn("entity extraction failed, continuing")
	} else {
		extracted = out
	}

	report := ""
	if s.reporter == nil {
		stageErrors = append(stageErrors, newStageError("report", apperrors.New(apperrors.KindConfig, "report provider not configured")))
	} else if out, err := s.reporter.Generate(r.Context(), transcript, extracted); err != nil {
		stageErrors = append(stageErrors, newStageError("report", err))
		logger.Log.WithError(err).Warn("report generation failed, continuing")
	} else {
		report = out
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transcript":  transcript,
		"entities":    extracted,
		"report":      report,
		"stageErrors": stageErrors,
	})
}

func newStageError(stage string, err error) stageError {
	return stageError{Stage: stage, Kind: string(apperrors.KindOf(err)), Message: err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.KindNoMedicalData:
		status = http.StatusUnprocessableEntity
	case apperrors.KindParse:
		status = http.StatusBadGateway // provider produced garbage, not the caller
	case apperrors.KindUpstreamAPI:
		status = http.StatusBadGateway
	case apperrors.KindConfig:
		status = http.StatusServiceUnavailable
	case apperrors.KindRateLimitExceeded:
		status = http.StatusTooManyRequests
	}

	if fallback != "" && status == http.StatusInternalServerError {
		logger.Log.WithError(err).Error(fallback)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"kind":    string(apperrors.KindOf(err)),
			"message": err.Error(),
		},
	})
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/api/shared"
	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/service"
)

// GenerateResponse is the success body for the generation endpoints when the
// run is still in progress.
type GenerateResponse struct {
	BatchNumber        int  `json:"batch_number"`
	QuestionsGenerated int  `json:"questions_generated"`
	TotalGenerated     int  `json:"total_generated"`
	TargetQuestions    int  `json:"target_questions"`
	HasMore            bool `json:"has_more"`
	NextBatchTriggered bool `json:"next_batch_triggered"`
}

// GenerateCompletedResponse is the success body when the section reached
// review.
type GenerateCompletedResponse struct {
	Completed         bool   `json:"completed"`
	TotalGenerated    int    `json:"total_generated"`
	ChaptersExhausted bool   `json:"chapters_exhausted,omitempty"`
	Diagnostic        string `json:"diagnostic,omitempty"`
}

// GeneratePartialResponse is the 207 body for graceful partial failure.
type GeneratePartialResponse struct {
	Error              string `json:"error"`
	PartialSuccess     bool   `json:"partial_success"`
	BatchesCompleted   int    `json:"batches_completed"`
	QuestionsAvailable int    `json:"questions_available"`
}

// ChapterProgressResponse reports one chapter's quota consumption.
type ChapterProgressResponse struct {
	ChapterID          string `json:"chapter_id"`
	ChapterName        string `json:"chapter_name"`
	QuestionsTarget    int    `json:"questions_target"`
	QuestionsGenerated int    `json:"questions_generated"`
}

// BatchAuditResponse reports usage metrics for one completed sub-job.
type BatchAuditResponse struct {
	BatchNumber      int       `json:"batch_number"`
	QuestionsAdded   int       `json:"questions_added"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CompletedAt      time.Time `json:"completed_at"`
}

// SectionResponse is the progress snapshot returned by the status endpoint.
type SectionResponse struct {
	ID                    string                    `json:"id"`
	ExamID                string                    `json:"exam_id"`
	Title                 string                    `json:"title"`
	Status                string                    `json:"status"`
	GenerationMode        string                    `json:"generation_mode"`
	QuestionCount         int                       `json:"question_count"`
	TargetQuestions       int                       `json:"target_questions"`
	BatchNumber           int                       `json:"batch_number"`
	TotalBatches          int                       `json:"total_batches"`
	QuestionsGenerated    int                       `json:"questions_generated"`
	Chapters              []ChapterProgressResponse `json:"chapters,omitempty"`
	BatchAudits           []BatchAuditResponse      `json:"batch_audits,omitempty"`
	GenerationError       string                    `json:"generation_error,omitempty"`
	GenerationStartedAt   *time.Time                `json:"generation_started_at,omitempty"`
	GenerationCompletedAt *time.Time                `json:"generation_completed_at,omitempty"`
}

// SectionReaper reclaims a single stale generation job. Satisfied by
// service.StaleJobReaper.
type SectionReaper interface {
	ReapSection(ctx context.Context, sectionID uuid.UUID) (bool, error)
}

// SectionHandler handles section generation HTTP requests.
type SectionHandler struct {
	generationService service.GenerationService
	reaper            SectionReaper
	logger            *slog.Logger
}

// NewSectionHandler creates a new SectionHandler.
func NewSectionHandler(generationService service.GenerationService, reaper SectionReaper, logger *slog.Logger) *SectionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SectionHandler{
		generationService: generationService,
		reaper:            reaper,
		logger:            logger.With("component", "section_handler"),
	}
}

// Generate handles POST /api/sections/{id}/generate requests. It runs one
// generation sub-job synchronously; remaining sub-jobs continue on the
// background queue.
func (h *SectionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, sectionID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	outcome, err := h.generationService.StartGeneration(r.Context(), sectionID, userID)
	if err != nil {
		h.respondGenerationError(w, r, sectionID, err)
		return
	}

	h.respondOutcome(w, r, outcome)
}

// Regenerate handles POST /api/sections/{id}/regenerate requests. A fresh
// attempt id is minted; items from the prior attempt are kept but no longer
// count toward progress or dedup.
func (h *SectionHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	userID, sectionID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	outcome, err := h.generationService.Regenerate(r.Context(), sectionID, userID)
	if err != nil {
		h.respondGenerationError(w, r, sectionID, err)
		return
	}

	h.respondOutcome(w, r, outcome)
}

// GetSection handles GET /api/sections/{id} requests. Stale generation jobs
// are reclaimed on read, so a dashboard poll is enough to unstick a section
// whose worker died.
func (h *SectionHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	userID, sectionID, ok := handleUserIDAndPathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if reclaimed, err := h.reaper.ReapSection(r.Context(), sectionID); err != nil {
		h.logger.Error("reaper check failed on status read",
			"section_id", sectionID,
			"error", err)
	} else if reclaimed {
		h.logger.Info("reclaimed stale section on status read", "section_id", sectionID)
	}

	section, err := h.generationService.GetSection(r.Context(), sectionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if section.UserID != userID {
		HandleAPIError(w, r, service.ErrNotOwned, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, sectionToResponse(section))
}

func (h *SectionHandler) respondOutcome(w http.ResponseWriter, r *http.Request, outcome *service.BatchOutcome) {
	switch {
	case outcome.PartialFailure:
		shared.RespondWithJSON(w, r, http.StatusMultiStatus, GeneratePartialResponse{
			Error:              "generation failed after retries; prior batches were preserved",
			PartialSuccess:     true,
			BatchesCompleted:   outcome.BatchesCompleted,
			QuestionsAvailable: outcome.TotalGenerated,
		})

	case outcome.Completed:
		shared.RespondWithJSON(w, r, http.StatusOK, GenerateCompletedResponse{
			Completed:         true,
			TotalGenerated:    outcome.TotalGenerated,
			ChaptersExhausted: outcome.ChaptersExhausted,
			Diagnostic:        outcome.Diagnostic,
		})

	default:
		shared.RespondWithJSON(w, r, http.StatusOK, GenerateResponse{
			BatchNumber:        outcome.BatchNumber,
			QuestionsGenerated: outcome.QuestionsGenerated,
			TotalGenerated:     outcome.TotalGenerated,
			TargetQuestions:    outcome.TargetQuestions,
			HasMore:            outcome.HasMore,
			NextBatchTriggered: outcome.NextBatchTriggered,
		})
	}
}

func (h *SectionHandler) respondGenerationError(w http.ResponseWriter, r *http.Request, sectionID uuid.UUID, err error) {
	if errors.Is(err, service.ErrGenerationFailed) {
		// Complete failure before any accepted batch: the section keeps its
		// diagnostic and stays retryable.
		h.logger.Error("generation failed with no salvageable batches",
			"section_id", sectionID,
			"error", err)
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Generation failed; no questions were produced", err)
		return
	}
	HandleAPIError(w, r, err, "")
}

func sectionToResponse(section *domain.Section) SectionResponse {
	resp := SectionResponse{
		ID:                    section.ID.String(),
		ExamID:                section.ExamID.String(),
		Title:                 section.Title,
		Status:                string(section.Status),
		GenerationMode:        string(section.Mode),
		QuestionCount:         section.QuestionCount,
		TargetQuestions:       section.TargetQuestions,
		BatchNumber:           section.BatchNumber,
		TotalBatches:          section.TotalBatches,
		QuestionsGenerated:    section.QuestionsGenerated,
		GenerationError:       section.GenerationError,
		GenerationStartedAt:   section.GenerationStartedAt,
		GenerationCompletedAt: section.GenerationCompletedAt,
	}

	for _, ch := range section.Schedule.Chapters {
		resp.Chapters = append(resp.Chapters, ChapterProgressResponse{
			ChapterID:          ch.ChapterID.String(),
			ChapterName:        ch.ChapterName,
			QuestionsTarget:    ch.QuestionsTarget,
			QuestionsGenerated: ch.QuestionsGenerated,
		})
	}
	for _, audit := range section.BatchAudits {
		resp.BatchAudits = append(resp.BatchAudits, BatchAuditResponse{
			BatchNumber:      audit.BatchNumber,
			QuestionsAdded:   audit.QuestionsAdded,
			PromptTokens:     audit.PromptTokens,
			CompletionTokens: audit.CompletionTokens,
			TotalTokens:      audit.TotalTokens,
			CostUSD:          audit.CostUSD,
			CompletedAt:      audit.CompletedAt,
		})
	}
	return resp
}

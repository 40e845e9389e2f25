package generation

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/domain"
)

// Attachment is a binary source document uploaded alongside the prompt in
// source-of-truth mode.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// BatchRequest describes one bounded generation call: how many questions to
// produce, how the model is grounded, and which prior questions to avoid
// repeating.
type BatchRequest struct {
	SectionID uuid.UUID
	AttemptID uuid.UUID
	Mode      domain.GenerationMode

	// Count is the number of questions requested for this sub-job, already
	// clamped to the remaining quota of the active scope.
	Count int

	// Prompt is the fully built prompt text from the exam protocol.
	Prompt string

	// ScopeDocument carries the structured scope text for scope-only mode.
	ScopeDocument string

	// Attachments carry source documents for source-of-truth mode.
	Attachments []Attachment

	// PriorQuestions is the dedup context: accepted items from earlier
	// sub-jobs of the same attempt, chapter-scoped where applicable.
	PriorQuestions []json.RawMessage
}

// Usage reports token consumption for one generation call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// BatchResult is the normalized response from the external service: the
// accepted question payloads plus usage metrics.
type BatchResult struct {
	Questions []json.RawMessage
	Usage     Usage
}

// Generator is the boundary between the orchestration core and the external
// generative service. Implementations normalize provider responses into a
// BatchResult or raise one of the typed failures in errors.go so the retry
// layer can classify the attempt.
type Generator interface {
	GenerateBatch(ctx context.Context, req BatchRequest) (*BatchResult, error)
}

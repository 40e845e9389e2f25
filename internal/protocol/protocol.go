package protocol

import (
	"encoding/json"

	"github.com/phrazzld/examgen-api/internal/domain"
)

// PromptRequest carries everything a protocol needs to build the prompt for
// one generation sub-job.
type PromptRequest struct {
	SectionTitle string
	Subject      string
	// ChapterName is empty for sections without chapter scheduling.
	ChapterName string
	// Count is the number of questions requested for this sub-job.
	Count int
	Mode  domain.GenerationMode
	// ScopeDocument is included verbatim in scope-only mode.
	ScopeDocument string
	// PriorQuestions are the dedup context payloads the model must not repeat.
	PriorQuestions []json.RawMessage
}

// Protocol supplies the per-exam configuration consumed by prompt
// construction: target distribution across content archetypes, allowed
// structural forms, cognitive load guidance, and prohibitions. Prompt text is
// data held by the implementation, not code.
type Protocol interface {
	// Name identifies the protocol in logs and audits.
	Name() string

	// ArchetypeDistribution returns the intended share of each content
	// archetype, in percent. Shares sum to 100.
	ArchetypeDistribution() map[string]int

	// StructuralForms returns the allowed question forms.
	StructuralForms() []string

	// CognitiveLoad returns the difficulty guidance passed to the model.
	CognitiveLoad() string

	// Prohibitions returns textual rules the model must not violate.
	Prohibitions() []string

	// BuildPrompt renders the full prompt text for one sub-job.
	BuildPrompt(req PromptRequest) (string, error)
}

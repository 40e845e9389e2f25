package protocol

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/phrazzld/examgen-api/internal/domain"
)

// promptTemplate renders the sub-job prompt. The mode-specific grounding
// instruction and the protocol's rule set are data supplied per exam.
const promptTemplate = `You are generating exam-style multiple choice questions for the section "{{.SectionTitle}}" ({{.Subject}}{{if .ChapterName}}, chapter: {{.ChapterName}}{{end}}).

{{.GroundingInstruction}}

Generate exactly {{.Count}} questions.

Distribute questions across these archetypes (percent of batch):
{{range $archetype, $share := .Distribution}}- {{$archetype}}: {{$share}}%
{{end}}
Allowed structural forms: {{join .Forms ", "}}.

Cognitive load: {{.CognitiveLoad}}

Rules that must not be violated:
{{range .Prohibitions}}- {{.}}
{{end}}
{{if .PriorQuestions}}The following questions were already generated for this section. Do NOT repeat or closely paraphrase any of them:
{{range .PriorQuestions}}{{.}}
{{end}}{{end}}{{if .ScopeDocument}}Syllabus scope document:
{{.ScopeDocument}}
{{end}}
Respond with a JSON object of the form {"questions": [...]} where each
question has fields: stem, options (array of 4 strings), answer, explanation,
archetype, form, difficulty. Respond with JSON only, no surrounding prose.`

// groundingInstructions maps each generation mode to its grounding text.
var groundingInstructions = map[domain.GenerationMode]string{
	domain.ModeSelfKnowledge: "Draw on your general domain knowledge of the standard syllabus for this subject.",
	domain.ModeScopeOnly:     "Use ONLY the syllabus scope document below to decide what is in scope. Do not introduce topics outside it.",
	domain.ModeSourceOfTruth: "The attached source documents are the sole factual ground truth. Every stem, option, and explanation must be verifiable against them.",
}

// ExamProtocol is a data-driven Protocol implementation. One value per
// exam/subject pair; the registry selects among them.
type ExamProtocol struct {
	ProtocolName  string
	Distribution  map[string]int
	Forms         []string
	Load          string
	Rules         []string
	promptBuilder *template.Template
}

type promptData struct {
	SectionTitle         string
	Subject              string
	ChapterName          string
	Count                int
	GroundingInstruction string
	Distribution         map[string]int
	Forms                []string
	CognitiveLoad        string
	Prohibitions         []string
	PriorQuestions       []string
	ScopeDocument        string
}

// NewExamProtocol builds a protocol from its configuration data.
func NewExamProtocol(name string, distribution map[string]int, forms []string, load string, rules []string) (*ExamProtocol, error) {
	if name == "" {
		return nil, fmt.Errorf("protocol name cannot be empty")
	}
	total := 0
	for _, share := range distribution {
		total += share
	}
	if len(distribution) > 0 && total != 100 {
		return nil, fmt.Errorf("archetype distribution for %q sums to %d, want 100", name, total)
	}

	tmpl, err := template.New(name).
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}

	return &ExamProtocol{
		ProtocolName:  name,
		Distribution:  distribution,
		Forms:         forms,
		Load:          load,
		Rules:         rules,
		promptBuilder: tmpl,
	}, nil
}

// Name implements Protocol.
func (p *ExamProtocol) Name() string { return p.ProtocolName }

// ArchetypeDistribution implements Protocol.
func (p *ExamProtocol) ArchetypeDistribution() map[string]int { return p.Distribution }

// StructuralForms implements Protocol.
func (p *ExamProtocol) StructuralForms() []string { return p.Forms }

// CognitiveLoad implements Protocol.
func (p *ExamProtocol) CognitiveLoad() string { return p.Load }

// Prohibitions implements Protocol.
func (p *ExamProtocol) Prohibitions() []string { return p.Rules }

// BuildPrompt implements Protocol.
func (p *ExamProtocol) BuildPrompt(req PromptRequest) (string, error) {
	if req.Count <= 0 {
		return "", fmt.Errorf("prompt request count must be positive, got %d", req.Count)
	}

	grounding, ok := groundingInstructions[req.Mode]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidGenerationMode, req.Mode)
	}

	prior := make([]string, 0, len(req.PriorQuestions))
	for _, q := range req.PriorQuestions {
		prior = append(prior, string(q))
	}

	data := promptData{
		SectionTitle:         req.SectionTitle,
		Subject:              req.Subject,
		ChapterName:          req.ChapterName,
		Count:                req.Count,
		GroundingInstruction: grounding,
		Distribution:         p.Distribution,
		Forms:                p.Forms,
		CognitiveLoad:        p.Load,
		Prohibitions:         p.Rules,
		PriorQuestions:       prior,
		ScopeDocument:        req.ScopeDocument,
	}

	var buf bytes.Buffer
	if err := p.promptBuilder.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

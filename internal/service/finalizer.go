package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/phrazzld/examgen-api/internal/domain"
)

// QualityChecker runs a post-pass over the accepted questions of one attempt
// before the section moves to review. Findings are advisory: they become part
// of the section diagnostic, they never remove questions or fail the job.
type QualityChecker interface {
	Check(ctx context.Context, section *domain.Section, questions []*domain.GeneratedQuestion) []string
}

// duplicateStemChecker flags questions within one attempt that share an
// identical stem after whitespace and case normalization.
type duplicateStemChecker struct{}

// NewDuplicateStemChecker returns the default QualityChecker.
func NewDuplicateStemChecker() QualityChecker {
	return duplicateStemChecker{}
}

func (duplicateStemChecker) Check(_ context.Context, _ *domain.Section, questions []*domain.GeneratedQuestion) []string {
	seen := make(map[string]int, len(questions))
	var findings []string

	for _, q := range questions {
		content, err := q.ParsedContent()
		if err != nil || content.Stem == "" {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(content.Stem), " "))
		if first, ok := seen[key]; ok {
			findings = append(findings, fmt.Sprintf(
				"question %d repeats the stem of question %d", q.QuestionOrder, first))
			continue
		}
		seen[key] = q.QuestionOrder
	}
	return findings
}

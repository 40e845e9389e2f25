package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/store"
)

// dedupContext assembles the prior accepted questions a generation call must
// avoid repeating. Items are scoped to the section's current attempt id, so
// questions from a discarded earlier run never pollute the context, and to
// the active chapter when chapter scheduling is in effect, so a later chapter
// never sees the full cross-chapter history. Results keep their original
// question_order.
func dedupContext(ctx context.Context, questions store.QuestionStore, section *domain.Section, scope batchScope) ([]json.RawMessage, error) {
	var (
		prior []*domain.GeneratedQuestion
		err   error
	)
	if scope.Chaptered {
		prior, err = questions.FindByAttemptAndChapter(ctx, section.ID, section.GenerationAttemptID, scope.ChapterID)
	} else {
		prior, err = questions.FindByAttempt(ctx, section.ID, section.GenerationAttemptID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dedup context: %w", err)
	}

	payloads := make([]json.RawMessage, 0, len(prior))
	for _, q := range prior {
		payloads = append(payloads, q.Content)
	}
	return payloads, nil
}

package service

import (
	"errors"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/domain"
)

// batchScope describes the slice of work the next sub-job should target: how
// many questions to request and, for multi-chapter sections, which chapter
// they belong to.
type batchScope struct {
	// Count is the number of questions to request this sub-job, already
	// clamped to batch size and the remaining quota of the active scope.
	Count int

	// Chaptered reports whether the scope is pinned to one chapter.
	Chaptered bool

	// ChapterIndex is the schedule index of the active chapter.
	ChapterIndex int
	ChapterID    uuid.UUID
	ChapterName  string
}

// errChaptersExhausted signals that every chapter quota has been consumed.
// For multi-chapter sections this is a terminal success condition even when
// the overall target was not reached; quotas are authoritative.
var errChaptersExhausted = errors.New("chapter schedule exhausted")

// nextBatchScope decides what the next sub-job should generate. State is read
// from the section record each call, never cached, so scheduling resumes
// correctly across process restarts. The section's schedule index may be
// advanced in place; the caller persists it together with batch progress.
func nextBatchScope(section *domain.Section) (batchScope, error) {
	remaining := section.Remaining()

	if !section.UsesChapterSchedule() {
		count := section.BatchSize
		if remaining < count {
			count = remaining
		}
		return batchScope{Count: count}, nil
	}

	chapter, err := section.Schedule.Advance()
	if err != nil {
		if errors.Is(err, domain.ErrScheduleExhausted) {
			return batchScope{}, errChaptersExhausted
		}
		return batchScope{}, err
	}

	count := section.BatchSize
	if chapter.Remaining() < count {
		count = chapter.Remaining()
	}
	if remaining < count {
		count = remaining
	}

	return batchScope{
		Count:        count,
		Chaptered:    true,
		ChapterIndex: section.Schedule.CurrentChapterIndex,
		ChapterID:    chapter.ChapterID,
		ChapterName:  chapter.ChapterName,
	}, nil
}

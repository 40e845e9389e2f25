package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Chapter schedule validation errors
var (
	ErrEmptyChapterID      = errors.New("chapter ID cannot be empty")
	ErrInvalidChapterQuota = errors.New("chapter quota must be positive")
	ErrScheduleExhausted   = errors.New("all chapters in the schedule are exhausted")
)

// ChapterAllocation is one entry in a section's chapter schedule: a chapter
// and the number of questions allotted to it for the current run.
type ChapterAllocation struct {
	ChapterID          uuid.UUID `json:"chapter_id"`
	ChapterName        string    `json:"chapter_name"`
	QuestionsTarget    int       `json:"questions_target"`
	QuestionsGenerated int       `json:"questions_generated"`
}

// Remaining returns how many questions the chapter still needs.
func (a ChapterAllocation) Remaining() int {
	return a.QuestionsTarget - a.QuestionsGenerated
}

// Exhausted reports whether the chapter's quota has been met.
func (a ChapterAllocation) Exhausted() bool {
	return a.QuestionsGenerated >= a.QuestionsTarget
}

// ChapterSchedule is the ordered list of per-chapter quotas consumed
// sequentially within a section. Quotas are fixed at job start; only the
// generated counters and the current index move. The whole structure is
// persisted as a typed JSONB column so scheduling survives process restarts.
type ChapterSchedule struct {
	Chapters            []ChapterAllocation `json:"chapters,omitempty"`
	CurrentChapterIndex int                 `json:"current_chapter_index"`
}

// Validate checks the schedule entries for structural validity.
func (cs *ChapterSchedule) Validate() error {
	for _, ch := range cs.Chapters {
		if ch.ChapterID == uuid.Nil {
			return ErrEmptyChapterID
		}
		if ch.QuestionsTarget <= 0 {
			return ErrInvalidChapterQuota
		}
	}
	return nil
}

// TotalTarget returns the sum of all chapter quotas.
func (cs *ChapterSchedule) TotalTarget() int {
	total := 0
	for _, ch := range cs.Chapters {
		total += ch.QuestionsTarget
	}
	return total
}

// TotalGenerated returns the sum of per-chapter generated counters.
func (cs *ChapterSchedule) TotalGenerated() int {
	total := 0
	for _, ch := range cs.Chapters {
		total += ch.QuestionsGenerated
	}
	return total
}

// Current returns the active chapter allocation, or false when the index has
// advanced past the last chapter.
func (cs *ChapterSchedule) Current() (ChapterAllocation, bool) {
	if cs.CurrentChapterIndex < 0 || cs.CurrentChapterIndex >= len(cs.Chapters) {
		return ChapterAllocation{}, false
	}
	return cs.Chapters[cs.CurrentChapterIndex], true
}

// Advance moves past exhausted chapters to the next one with remaining quota.
// Returns ErrScheduleExhausted when no chapters remain, which is a terminal
// condition for multi-chapter sections even if the overall target was not met.
func (cs *ChapterSchedule) Advance() (ChapterAllocation, error) {
	for cs.CurrentChapterIndex < len(cs.Chapters) {
		ch := cs.Chapters[cs.CurrentChapterIndex]
		if !ch.Exhausted() {
			return ch, nil
		}
		cs.CurrentChapterIndex++
	}
	return ChapterAllocation{}, ErrScheduleExhausted
}

// RecordGenerated adds count to the chapter at the given index.
func (cs *ChapterSchedule) RecordGenerated(index, count int) {
	if index < 0 || index >= len(cs.Chapters) {
		return
	}
	cs.Chapters[index].QuestionsGenerated += count
}

// ResetProgress zeroes the generated counters and rewinds the index, keeping
// the quotas. Used when a section is regenerated under a new attempt id.
func (cs *ChapterSchedule) ResetProgress() {
	for i := range cs.Chapters {
		cs.Chapters[i].QuestionsGenerated = 0
	}
	cs.CurrentChapterIndex = 0
}

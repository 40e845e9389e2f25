// Package domain holds the entities of the generation pipeline: sections and
// their status state machine, chapter schedules, and generated questions.
// It depends on nothing outside the standard library and uuid.
package domain

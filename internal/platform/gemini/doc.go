// Package gemini provides the generation.Generator implementation backed by
// Google's Gemini API.
//
// It is an infrastructure adapter: it sends the prompt built by the exam
// protocol (plus source attachments in source-of-truth mode), enforces a
// per-call deadline, parses the structured JSON reply into raw question
// payloads, extracts token usage, and maps provider failures onto the typed
// errors the retry layer classifies (parse, timeout, generic API, blocked).
// Retrying itself is the service layer's job.
package gemini

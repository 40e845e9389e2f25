// Package generation provides interfaces and types for interacting with
// external AI/LLM services for content generation. It abstracts the details
// of LLM API integration (Gemini), allowing the orchestration core to request
// question batches without coupling to a specific provider.
package generation

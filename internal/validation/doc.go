// Package validation checks generated question payloads against structural
// rules. Findings are advisory; the orchestrator logs them and keeps the
// items.
package validation

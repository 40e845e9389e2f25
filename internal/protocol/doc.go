// Package protocol holds the per-exam prompt configuration: archetype
// distributions, structural forms, cognitive load guidance, prohibitions,
// and prompt construction. Protocols are plain data selected through a
// registry keyed on (stream, subject), so supporting a new exam does not
// touch the orchestration core.
package protocol

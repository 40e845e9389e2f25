package protocol

import "fmt"

// NewDefaultRegistry builds the registry with the built-in protocol catalog.
// The catalog is configuration data; adding an exam means adding an entry
// here, not new orchestration code.
func NewDefaultRegistry() (*Registry, error) {
	fallback, err := NewExamProtocol(
		"general",
		map[string]int{
			"recall":      40,
			"application": 40,
			"analysis":    20,
		},
		[]string{"single_best_answer"},
		"Mixed difficulty, weighted toward moderate. Avoid trivially guessable stems.",
		[]string{
			"Never reuse a stem from the dedup context, even reworded.",
			"All four options must be plausible to a weak candidate.",
			"Exactly one option is correct.",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build fallback protocol: %w", err)
	}

	registry := NewRegistry(fallback)

	medical, err := NewExamProtocol(
		"medical-pg",
		map[string]int{
			"clinical_vignette": 50,
			"recall":            20,
			"image_based":       10,
			"application":       20,
		},
		[]string{"single_best_answer", "assertion_reason"},
		"Match postgraduate entrance difficulty: two-step reasoning over first-order recall.",
		[]string{
			"Clinical vignettes must include age, presentation, and one discriminating finding.",
			"No absolute qualifiers (always, never) in correct options.",
			"Distractors must be from the same drug class, organism family, or anatomical region as the answer.",
			"Never reuse a stem from the dedup context, even reworded.",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build medical protocol: %w", err)
	}
	registry.Register("medical", "", medical)

	engineering, err := NewExamProtocol(
		"engineering-gate",
		map[string]int{
			"numerical":   50,
			"conceptual":  30,
			"application": 20,
		},
		[]string{"single_best_answer", "numerical_answer"},
		"Numerical items should require 2-4 solution steps; conceptual items test edge cases of definitions.",
		[]string{
			"Numerical answers must be computable without tables or calculators beyond basic arithmetic.",
			"State all units explicitly in stems and options.",
			"Never reuse a stem from the dedup context, even reworded.",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build engineering protocol: %w", err)
	}
	registry.Register("engineering", "", engineering)

	return registry, nil
}

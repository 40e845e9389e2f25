package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// questionSchema describes the conventional question payload. Violations are
// soft: they are reported for logging, never used to drop an item, since a
// protocol may legitimately extend or relax the shape.
const questionSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["stem", "answer"],
	"properties": {
		"stem": {"type": "string", "minLength": 10},
		"options": {
			"type": "array",
			"items": {"type": "string", "minLength": 1},
			"minItems": 2,
			"maxItems": 6
		},
		"answer": {"type": "string", "minLength": 1},
		"explanation": {"type": "string"},
		"archetype": {"type": "string"},
		"form": {"type": "string"},
		"difficulty": {"type": "string"}
	}
}`

// Violation is one soft-rule finding on a generated item.
type Violation struct {
	// Index is the item's position within the batch.
	Index int
	// Detail describes what failed.
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("item %d: %s", v.Index, v.Detail)
}

// QuestionValidator checks generated question payloads against the
// structural schema.
type QuestionValidator struct {
	schema *jsonschema.Schema
}

// NewQuestionValidator compiles the built-in question schema.
func NewQuestionValidator() (*QuestionValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("question.schema.json", bytes.NewReader([]byte(questionSchema))); err != nil {
		return nil, fmt.Errorf("failed to add question schema resource: %w", err)
	}
	schema, err := compiler.Compile("question.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile question schema: %w", err)
	}
	return &QuestionValidator{schema: schema}, nil
}

// Validate checks each payload in the batch and returns all soft violations.
// A nil return means every item conformed.
func (v *QuestionValidator) Validate(items []json.RawMessage) []Violation {
	var violations []Violation
	for i, item := range items {
		var decoded any
		if err := json.Unmarshal(item, &decoded); err != nil {
			violations = append(violations, Violation{Index: i, Detail: fmt.Sprintf("not valid JSON: %v", err)})
			continue
		}
		if err := v.schema.Validate(decoded); err != nil {
			violations = append(violations, Violation{Index: i, Detail: err.Error()})
		}
	}
	return violations
}

package gemini

import "encoding/json"

// batchEnvelope is the expected top-level structure of the model's reply.
// Individual questions stay raw; their shape belongs to the exam protocol
// and is checked by the soft validator, not here.
type batchEnvelope struct {
	Questions []json.RawMessage `json:"questions"`
}

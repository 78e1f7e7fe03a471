package ai

import (
	"context"
)

// Narrator turns a structured pricing summary into a short human-readable explanation.
// Narratives are cosmetic: callers must treat failures as non-fatal.
type Narrator interface {
	// Narrate returns plain text for the given prompt.
	Narrate(ctx context.Context, prompt string) (string, error)
}

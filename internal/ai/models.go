package ai

import "strings"

// Narrative captures the structured output requested from the model.
type Narrative struct {
	// Headline is a single sentence summarising the recommendation set.
	Headline string `json:"headline"`

	// Points are short supporting bullets, at most one per recommended rule.
	Points []string `json:"points"`

	// Caveats lists risks the reader should weigh before rolling out.
	Caveats []string `json:"caveats,omitempty"`
}

// Text renders the narrative as plain text with bullet lines.
func (n Narrative) Text() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(n.Headline))
	for _, p := range n.Points {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteString("\n- ")
			b.WriteString(p)
		}
	}
	if len(n.Caveats) > 0 {
		b.WriteString("\nCaveats:")
		for _, c := range n.Caveats {
			b.WriteString("\n- ")
			b.WriteString(strings.TrimSpace(c))
		}
	}
	return b.String()
}

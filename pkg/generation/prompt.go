package generation

import (
	"fmt"
	"strings"

	"github.com/davidhonghikim/griot-sub000/pkg/retrieval"
)

const promptTemplate = `You are answering with the knowledge of the personas below. Use only the
context that is relevant to the question and speak in the voice of the most
relevant persona.

Context:
%s

Question: %s

Answer:`

const noContext = "(no relevant personas found)"

// BuildContextBlock labels each retrieved persona with its position and
// relevance score, followed by its full content.
func BuildContextBlock(docs []retrieval.Result) string {
	if len(docs) == 0 {
		return ""
	}

	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		name := d.Name
		if name == "" {
			name = d.PersonaID
		}
		fmt.Fprintf(&b, "[Persona %d] %s (relevance: %.2f)\n%s", i+1, name, d.RelevanceScore, d.Content)
	}
	return b.String()
}

// BuildPrompt renders the instruction prompt around a context block.
func BuildPrompt(contextBlock, question string) string {
	if contextBlock == "" {
		contextBlock = noContext
	}
	return fmt.Sprintf(promptTemplate, contextBlock, question)
}

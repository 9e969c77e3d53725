package vectorize

import (
	"strings"

	"github.com/davidhonghikim/griot-sub000/pkg/persona"
)

// BuildContent renders a persona as labeled sections in a fixed order,
// separated by blank lines. Empty sections are omitted. The output depends
// only on p, so equal personas always embed equally.
func BuildContent(p *persona.Persona) string {
	if p == nil {
		return ""
	}

	sections := []struct {
		label string
		value string
	}{
		{"Name", p.Name},
		{"Classification", joinNonEmpty(" / ", p.Base, p.Variant, p.Author)},
		{"Description", p.Description},
		{"Tags", joinNonEmpty(", ", p.Tags...)},
		{"Skills", joinNonEmpty(", ", p.Content.Skills...)},
		{"Knowledge", joinNonEmpty(", ", p.Content.Knowledge...)},
		{"Personality", p.Content.Personality},
		{"Communication Style", p.Content.CommunicationStyle},
	}

	var b strings.Builder
	for _, s := range sections {
		v := strings.TrimSpace(s.value)
		if v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s.label)
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

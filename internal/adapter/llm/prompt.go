package llm

import (
	"fmt"
	"strings"
)

// Mode selects the answer format requested from the model.
type Mode int

const (
	// ModeProse asks for sectioned bullet lists.
	ModeProse Mode = iota
	// ModeJSON asks for a single {"resources": [...]} object.
	ModeJSON
)

// Categories the models are asked to organise resources under.
var resourceCategories = []string{
	"Emergency Shelters",
	"Food Assistance",
	"Medical & Mental Health",
	"Disaster Recovery Centers",
	"Financial & Housing Assistance",
	"Utilities & Supplies",
	"Hotlines",
}

const systemPrompt = "You are a disaster-relief assistant. Only list real organisations with verifiable " +
	"contact details. Never invent phone numbers, addresses or websites. If unsure, omit the field."

// BuildPrompt returns the chat messages asking for disaster resources near
// postalCode in the given mode.
func BuildPrompt(postalCode string, mode Mode) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Find disaster relief and emergency assistance resources serving US ZIP code %s ", postalCode)
	b.WriteString("and the surrounding county, within about 30 miles.\n\n")
	b.WriteString("Cover these categories:\n")
	for _, c := range resourceCategories {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\nInclude national hotlines (FEMA, Red Cross, 211) only once.\n\n")

	switch mode {
	case ModeJSON:
		b.WriteString(`Respond with a single JSON object and nothing else, shaped as:
{"resources":[{"name":"","category":"","description":"","phone":"","website":"","email":"","address":"","city":"","state":"","hours":""}]}
Use one of the categories above for "category". Use empty strings for unknown fields.`)
	default:
		b.WriteString(`Format the answer as one section per category. Write the category name on its own line, ` +
			`then one bullet per resource in the form:
- Name - street address - phone. One sentence describing the services.`)
	}

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

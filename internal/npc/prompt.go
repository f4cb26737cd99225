package npc

import (
	_ "embed"
	"strings"
)

//go:embed system_prompt.md
var systemPromptTemplate string

// SystemPrompt renders the chat system prompt for p.
func SystemPrompt(p Personality) string {
	return RenderPrompt(systemPromptTemplate, p)
}

// RenderPrompt replaces the {name}, {personality}, {traits} and
// {description} placeholders in tmpl.
func RenderPrompt(tmpl string, p Personality) string {
	r := strings.NewReplacer(
		"{name}", p.Name,
		"{personality}", p.Personality,
		"{traits}", strings.Join(p.Traits, ", "),
		"{description}", p.Description,
	)
	return r.Replace(tmpl)
}

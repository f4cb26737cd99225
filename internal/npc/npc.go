package npc

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	unknownName        = "Unknown"
	neutralPersonality = "Neutral"
)

var frontmatterRE = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n(.*)$`)

// Personality is the character sheet parsed from an NPC's markdown file.
type Personality struct {
	Name        string
	Personality string
	Traits      []string
	Description string
}

// NPC is a character from the roster.
type NPC struct {
	// ID is the roster directory name, e.g. npc_1.
	ID string
	Personality
	// Portrait is optional ASCII art.
	Portrait string
}

// Title returns the NPC's display name, falling back to a prettified ID.
func (n NPC) Title() string {
	if n.Name != "" && n.Name != unknownName {
		return n.Name
	}
	if n.ID == "" {
		return unknownName
	}
	return cases.Title(language.English).String(strings.ReplaceAll(n.ID, "_", " "))
}

// Parse reads a character sheet: YAML front matter with name, personality
// and traits, followed by a free-form description. Content without front
// matter becomes the description of an Unknown, Neutral character.
func Parse(content []byte) Personality {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	m := frontmatterRE.FindSubmatch(content)
	if m == nil {
		return Personality{
			Name:        unknownName,
			Personality: neutralPersonality,
			Traits:      []string{},
			Description: strings.TrimSpace(string(content)),
		}
	}

	p := Personality{
		Name:        unknownName,
		Personality: neutralPersonality,
		Traits:      []string{},
		Description: strings.TrimSpace(string(m[2])),
	}

	var data map[string]any
	if err := yaml.Unmarshal(m[1], &data); err != nil {
		log.Debug("unable to parse npc front matter", "error", err)
		return p
	}

	if v, ok := data["name"].(string); ok && v != "" {
		p.Name = v
	}
	if v, ok := data["personality"].(string); ok && v != "" {
		p.Personality = v
	}
	if v, ok := data["traits"].([]any); ok {
		for _, t := range v {
			if s, ok := t.(string); ok && s != "" {
				p.Traits = append(p.Traits, s)
			}
		}
	}
	return p
}

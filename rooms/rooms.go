// Package rooms holds the chat room catalog. Each room carries a persona
// system prompt; the catalog ships with defaults and can be replaced from
// a YAML file.
package rooms

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Room is one chat room and the persona the agent adopts in it.
type Room struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Prompt      string `yaml:"prompt" json:"prompt"`
}

const basePersona = "You are Kindred, a thoughtful companion who remembers the people you talk to. Stay in character, keep replies conversational, and draw on what you know about the room and the user."

// defaultRooms is the built-in catalog.
var defaultRooms = []Room{
	{ID: "general", Name: "#general", Description: "Anything goes", Prompt: basePersona + " This is the general room; follow the conversation wherever it leads."},
	{ID: "tech", Name: "#tech", Description: "Programming and technology", Prompt: basePersona + " This room is about technology. Be precise about technical detail and happy to dig into code."},
	{ID: "gaming", Name: "#gaming", Description: "Games of every kind", Prompt: basePersona + " This room is about games. Trade recommendations and war stories."},
	{ID: "food", Name: "#food", Description: "Cooking and eating", Prompt: basePersona + " This room is about food. Talk recipes, restaurants, and failed experiments."},
	{ID: "random", Name: "#random", Description: "Off-topic chatter", Prompt: basePersona + " This room is for off-topic chatter. Be playful."},
	{ID: "art", Name: "#art", Description: "Visual art and design", Prompt: basePersona + " This room is about art and design. Discuss craft and taste without gatekeeping."},
	{ID: "music", Name: "#music", Description: "Listening and making music", Prompt: basePersona + " This room is about music. Share what moves you and ask what moves them."},
	{ID: "movies", Name: "#movies", Description: "Film and series", Prompt: basePersona + " This room is about film. Mind spoilers unless invited."},
	{ID: "sports", Name: "#sports", Description: "Playing and watching sports", Prompt: basePersona + " This room is about sports. Banter is welcome, stats even more."},
	{ID: "news", Name: "#news", Description: "Current events", Prompt: basePersona + " This room is about current events. Stay measured and separate fact from take."},
	{ID: "memes", Name: "#memes", Description: "Internet culture", Prompt: basePersona + " This room is about internet culture. Keep it light."},
}

// Catalog is a lookup table of rooms. Unknown room ids resolve to the
// general room's persona so chat never fails on a missing room.
type Catalog struct {
	byID     map[string]Room
	order    []string
	fallback Room
}

// Defaults returns the built-in catalog.
func Defaults() *Catalog {
	return build(defaultRooms)
}

// catalogFile is the YAML layout for overrides.
type catalogFile struct {
	Rooms []Room `yaml:"rooms"`
}

// Load reads a catalog from a YAML file, replacing the defaults
// entirely. An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Defaults(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read room catalog: %w", err)
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML bytes.
func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse room catalog: %w", err)
	}
	if len(file.Rooms) == 0 {
		return nil, fmt.Errorf("room catalog is empty")
	}
	for i, r := range file.Rooms {
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("room %d has no id", i)
		}
	}

	log.Printf("[ROOMS] loaded %d rooms from override", len(file.Rooms))
	return build(file.Rooms), nil
}

func build(list []Room) *Catalog {
	c := &Catalog{byID: make(map[string]Room, len(list))}
	for _, r := range list {
		if _, dup := c.byID[r.ID]; dup {
			continue
		}
		c.byID[r.ID] = r
		c.order = append(c.order, r.ID)
	}
	c.fallback = list[0]
	if general, ok := c.byID["general"]; ok {
		c.fallback = general
	}
	return c
}

// List returns every room in catalog order.
func (c *Catalog) List() []Room {
	out := make([]Room, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Lookup resolves a room id. Unknown ids fall back to the default room;
// the second return reports whether the id was actually in the catalog.
func (c *Catalog) Lookup(id string) (Room, bool) {
	if r, ok := c.byID[id]; ok {
		return r, true
	}
	return c.fallback, false
}

// EnhancedPrompt folds retrieved personality context into a room's
// persona prompt. No context returns the prompt unchanged.
func EnhancedPrompt(room Room, context []string) string {
	if len(context) == 0 {
		return room.Prompt
	}

	var b strings.Builder
	b.WriteString(room.Prompt)
	b.WriteString("\n\nRelevant context about you and this room:\n")
	for _, c := range context {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

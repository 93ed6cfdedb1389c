package ai

import (
	"fmt"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
)

const defaultFallbackPrompt = "You are a helpful and patient tutor. Explain concepts step by step and use LaTeX for math formulas."

// PromptTemplate holds the prompts a persona's sessions are seeded with.
type PromptTemplate struct {
	SystemPrompt   string
	FallbackPrompt string
}

// PersonaPromptManager maps personas to their prompt templates.
type PersonaPromptManager struct {
	personas  persona.Store
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager builds templates for every persona in the store.
func NewPersonaPromptManager(personas persona.Store) *PersonaPromptManager {
	manager := &PersonaPromptManager{
		personas:  personas,
		templates: make(map[string]*PromptTemplate),
	}

	for _, p := range personas.List() {
		if p.SystemPrompt == "" {
			continue
		}
		manager.templates[p.ID] = &PromptTemplate{
			SystemPrompt:   p.SystemPrompt,
			FallbackPrompt: p.FallbackPrompt,
		}
	}
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona.
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt returns the full system prompt for the persona.
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil {
		return pm.buildBasicSystemPrompt(p)
	}
	return template.SystemPrompt
}

// SystemPromptFor resolves a persona ID to its system prompt.
func (pm *PersonaPromptManager) SystemPromptFor(personaID string) (string, bool) {
	p, ok := pm.personas.FindByID(personaID)
	if !ok {
		return "", false
	}
	return pm.BuildSystemPrompt(&p), true
}

// FallbackPrompt returns the short identity used when the full prompt is rejected.
func (pm *PersonaPromptManager) FallbackPrompt(personaID string) string {
	if template, err := pm.GetPromptTemplate(personaID); err == nil && template.FallbackPrompt != "" {
		return template.FallbackPrompt
	}
	if p, ok := pm.personas.FindByID(personaID); ok {
		return fmt.Sprintf("You are %s. %s.", p.Name, p.Description)
	}
	return defaultFallbackPrompt
}

// buildBasicSystemPrompt creates a basic system prompt when no template is available.
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`You are %s, a tutor who %s.

Stay in character as %s. Explain concepts step by step and check the student's understanding.
When including mathematical formulas or equations, use LaTeX enclosed in $ for inline formulas and $$ for block equations.`,
		p.Name,
		lowerFirst(p.Description),
		p.Name,
	)
}

func lowerFirst(s string) string {
	if s == "" {
		return "helps students learn"
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}

package chat

import "time"

// Chat is a named transcript bound to one persona.
type Chat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

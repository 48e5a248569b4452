package domain

import "time"

// Conversation pertenece a un unico cliente y crece de forma monotona.
type Conversation struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"client_id"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

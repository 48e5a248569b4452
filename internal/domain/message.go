package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// AnswerSource indica de donde salio la respuesta del asistente.
type AnswerSource string

const (
	AnswerKB       AnswerSource = "kb"
	AnswerFallback AnswerSource = "fallback"
	AnswerNone     AnswerSource = "none"
)

// Message es inmutable una vez creado: se agrega, nunca se edita.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Role           string       `json:"role"`
	Content        string       `json:"content"`
	CreatedAt      time.Time    `json:"timestamp"`
	Intent         string       `json:"intent,omitempty"`
	Confidence     *float64     `json:"confidence,omitempty"`
	AnswerSource   AnswerSource `json:"answer_source,omitempty"`
	AgentID        AgentID      `json:"agent_id,omitempty"`
}

// InboundMessage es el envio de chat tal como llega del cliente.
type InboundMessage struct {
	ID        string
	Content   string
	Role      string
	Timestamp time.Time
}

// ChatReply agrupa el turno completo: mensaje del usuario, respuesta y metadata de ruteo.
type ChatReply struct {
	UserMessage      Message  `json:"user_message"`
	AssistantMessage Message  `json:"assistant_message"`
	AgentID          AgentID  `json:"agent_id"`
	AgentName        string   `json:"agent_name"`
	Intent           string   `json:"intent"`
	Confidence       float64  `json:"confidence"`
	States           []string `json:"-"`
}

package domain

// KnowledgeEntry es estatica despues de la carga y de solo lectura para el pipeline.
type KnowledgeEntry struct {
	AgentID  AgentID  `json:"agent_id"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
}

// IntentResult nunca se persiste solo: siempre va pegado al mensaje que clasifico.
type IntentResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

const (
	IntentBilling   = "billing_inquiry"
	IntentTechnical = "technical_issue"
	IntentEquipment = "equipment_issue"
	IntentGeneral   = "general_inquiry"
	IntentUnknown   = "unknown"
)

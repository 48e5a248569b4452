package domain

// AgentID identifica un agente de soporte especializado.
type AgentID string

const (
	AgentTechSupport AgentID = "tech_support"
	AgentBilling     AgentID = "billing"
	AgentGeneral     AgentID = "general"
	AgentUnknown     AgentID = "unknown"
)

// Agent agrupa el nombre visible y la persona usada al escalar al modelo.
type Agent struct {
	ID      AgentID `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Persona string  `json:"persona,omitempty" yaml:"persona"`
}

// DefaultAgentName devuelve el nombre visible cuando la base de conocimiento no lo define.
func DefaultAgentName(id AgentID) string {
	switch id {
	case AgentTechSupport:
		return "Tech Support"
	case AgentBilling:
		return "Billing Support"
	case AgentGeneral:
		return "General Support"
	default:
		return "Support Agent"
	}
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"support-router/internal/domain"
	"support-router/internal/intent"
	"support-router/internal/knowledge"
)

// RouteState es la etapa del pipeline de ruteo de un mensaje.
type RouteState string

const (
	RouteReceived   RouteState = "received"
	RouteClassified RouteState = "classified"
	RouteAnsweredKB RouteState = "answered_kb"
	RouteEscalating RouteState = "escalating"
	RouteCompleted  RouteState = "completed"
)

// Escalator produce una respuesta cuando la base de conocimiento no tiene match.
type Escalator interface {
	Escalate(ctx context.Context, history []domain.Message, agentID domain.AgentID, text string) domain.Message
}

// RouteOutcome es el mensaje del asistente mas el canal lateral de agente e intencion.
type RouteOutcome struct {
	Message    domain.Message
	AgentID    domain.AgentID
	AgentName  string
	Intent     string
	Confidence float64
	States     []RouteState
}

// RouterOptions agrupa la politica de ruteo configurable.
type RouterOptions struct {
	ConfidenceFloor  float64
	CrossAgentSearch bool
}

// AgentRouter clasifica, busca en la base de conocimiento y escala. No reintenta.
type AgentRouter struct {
	classifier intent.Classifier
	index      *knowledge.Index
	escalator  Escalator
	opts       RouterOptions
	logger     *zap.Logger
	now        func() time.Time
}

func NewAgentRouter(classifier intent.Classifier, index *knowledge.Index, escalator Escalator, opts RouterOptions, logger *zap.Logger) *AgentRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentRouter{
		classifier: classifier,
		index:      index,
		escalator:  escalator,
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var intentAgents = map[string]domain.AgentID{
	domain.IntentBilling:   domain.AgentBilling,
	domain.IntentTechnical: domain.AgentTechSupport,
	domain.IntentEquipment: domain.AgentTechSupport,
}

// AgentForIntent aplica la tabla intencion -> agente y el piso de confianza.
func AgentForIntent(res domain.IntentResult, floor float64) domain.AgentID {
	if res.Confidence < floor {
		return domain.AgentGeneral
	}
	if id, ok := intentAgents[res.Intent]; ok {
		return id
	}
	return domain.AgentGeneral
}

// Route produce exactamente un mensaje de asistente para text.
// history es la conversacion previa incluyendo el mensaje del usuario actual.
func (r *AgentRouter) Route(ctx context.Context, conversationID string, history []domain.Message, text string) RouteOutcome {
	states := []RouteState{RouteReceived}

	res := r.classify(ctx, text)
	agentID := AgentForIntent(res, r.opts.ConfidenceFloor)
	states = append(states, RouteClassified)

	var reply domain.Message
	if match, foundAgent, ok := r.lookup(agentID, text); ok {
		agentID = foundAgent
		reply = domain.Message{Content: match.Entry.Answer, AnswerSource: domain.AnswerKB}
		states = append(states, RouteAnsweredKB)
		r.logger.Debug("knowledge base hit",
			zap.String("agent_id", string(agentID)),
			zap.String("category", match.Entry.Category),
			zap.Float64("score", match.Score),
		)
	} else {
		states = append(states, RouteEscalating)
		reply = r.escalate(ctx, history, agentID, text)
	}
	states = append(states, RouteCompleted)

	conf := res.Confidence
	reply.ID = uuid.NewString()
	reply.ConversationID = conversationID
	reply.Role = domain.RoleAssistant
	reply.CreatedAt = r.now()
	reply.Intent = res.Intent
	reply.Confidence = &conf
	reply.AgentID = agentID

	return RouteOutcome{
		Message:    reply,
		AgentID:    agentID,
		AgentName:  r.index.Agent(agentID).Name,
		Intent:     res.Intent,
		Confidence: res.Confidence,
		States:     states,
	}
}

func (r *AgentRouter) classify(ctx context.Context, text string) domain.IntentResult {
	if r.classifier == nil {
		return domain.IntentResult{Intent: domain.IntentUnknown}
	}
	res, err := r.classifier.Classify(ctx, text)
	if err != nil {
		r.logger.Warn("intent classification degraded", zap.Error(err))
		return domain.IntentResult{Intent: domain.IntentUnknown}
	}
	return res
}

// lookup busca primero en el agente elegido y, si esta habilitado, en el resto en orden de carga.
func (r *AgentRouter) lookup(agentID domain.AgentID, text string) (knowledge.Match, domain.AgentID, bool) {
	if m, ok := r.index.Lookup(agentID, text); ok {
		return m, agentID, true
	}
	if !r.opts.CrossAgentSearch {
		return knowledge.Match{}, agentID, false
	}
	for _, other := range r.index.AgentIDs() {
		if other == agentID {
			continue
		}
		if m, ok := r.index.Lookup(other, text); ok {
			return m, other, true
		}
	}
	return knowledge.Match{}, agentID, false
}

func (r *AgentRouter) escalate(ctx context.Context, history []domain.Message, agentID domain.AgentID, text string) domain.Message {
	if r.escalator == nil {
		return deflection(agentID)
	}
	return r.escalator.Escalate(ctx, history, agentID, text)
}

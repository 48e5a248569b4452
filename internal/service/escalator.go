package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"support-router/internal/domain"
	"support-router/internal/llm"
)

var ErrEscalationFailed = errors.New("escalation failed")

const deflectionPrefix = "I'm not sure — let me connect you further."

// FailureReporter recibe las fallas de escalamiento; nunca se propagan al transporte.
type FailureReporter interface {
	ReportEscalationFailure(agentID domain.AgentID, attempts int, err error)
}

// ZapFailureReporter reporta fallas como logs estructurados.
type ZapFailureReporter struct {
	logger *zap.Logger
}

func NewZapFailureReporter(logger *zap.Logger) *ZapFailureReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapFailureReporter{logger: logger}
}

func (r *ZapFailureReporter) ReportEscalationFailure(agentID domain.AgentID, attempts int, err error) {
	r.logger.Warn("escalation failed, deflecting",
		zap.String("agent_id", string(agentID)),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
}

// EscalatorOptions controla la ventana de contexto y los reintentos.
type EscalatorOptions struct {
	ContextMessages int
	MaxRetries      int
	AttemptTimeout  time.Duration
}

// FallbackEscalator pide una respuesta generativa cuando la base de conocimiento no alcanza.
type FallbackEscalator struct {
	completer llm.Completer
	personas  func(domain.AgentID) domain.Agent
	opts      EscalatorOptions
	reporter  FailureReporter
}

// NewFallbackEscalator acepta completer nil: en ese caso siempre deflecta sin llamar al modelo.
func NewFallbackEscalator(completer llm.Completer, personas func(domain.AgentID) domain.Agent, opts EscalatorOptions, reporter FailureReporter) *FallbackEscalator {
	if opts.ContextMessages <= 0 {
		opts.ContextMessages = 10
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if personas == nil {
		personas = func(id domain.AgentID) domain.Agent {
			return domain.Agent{ID: id, Name: domain.DefaultAgentName(id)}
		}
	}
	if reporter == nil {
		reporter = NewZapFailureReporter(nil)
	}
	return &FallbackEscalator{completer: completer, personas: personas, opts: opts, reporter: reporter}
}

// Escalate devuelve siempre un mensaje: answerSource=fallback si el modelo respondio,
// answerSource=none con el texto de deflexion si no.
// history ya incluye el mensaje del usuario que se esta respondiendo.
func (e *FallbackEscalator) Escalate(ctx context.Context, history []domain.Message, agentID domain.AgentID, text string) domain.Message {
	if e == nil || e.completer == nil {
		return deflection(agentID)
	}

	system := e.systemContext(agentID)
	window := buildWindow(history, e.opts.ContextMessages, text)

	attempts := 0
	var lastErr error
	for attempts <= e.opts.MaxRetries {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts++
		answer, err := e.attempt(ctx, system, window)
		if err == nil {
			return domain.Message{Content: answer, AnswerSource: domain.AnswerFallback}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	e.reporter.ReportEscalationFailure(agentID, attempts, fmt.Errorf("%w: %w", ErrEscalationFailed, lastErr))
	return deflection(agentID)
}

func (e *FallbackEscalator) attempt(ctx context.Context, system string, window []llm.Turn) (string, error) {
	if e.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.AttemptTimeout)
		defer cancel()
	}
	answer, err := e.completer.Complete(ctx, system, window)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", llm.ErrEmptyResponse
	}
	return answer, nil
}

func (e *FallbackEscalator) systemContext(agentID domain.AgentID) string {
	agent := e.personas(agentID)
	persona := strings.TrimSpace(agent.Persona)
	if persona == "" {
		persona = fmt.Sprintf("You are %s, a customer support agent. Answer concisely and helpfully.", agent.Name)
	}
	return persona
}

// buildWindow toma los ultimos limit mensajes (sin system), del mas viejo al mas nuevo.
// Si el historial no termina con el texto actual, se agrega como turno de usuario.
func buildWindow(history []domain.Message, limit int, text string) []llm.Turn {
	filtered := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			continue
		}
		filtered = append(filtered, m)
	}
	last := len(filtered) - 1
	if last < 0 || filtered[last].Role != domain.RoleUser || filtered[last].Content != text {
		filtered = append(filtered, domain.Message{Role: domain.RoleUser, Content: text})
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	window := make([]llm.Turn, 0, len(filtered))
	for _, m := range filtered {
		window = append(window, llm.Turn{Role: m.Role, Content: m.Content})
	}
	return window
}

func deflection(agentID domain.AgentID) domain.Message {
	return domain.Message{
		Content:      deflectionPrefix + " " + deflectionHint(agentID),
		AnswerSource: domain.AnswerNone,
	}
}

func deflectionHint(agentID domain.AgentID) string {
	switch agentID {
	case domain.AgentTechSupport:
		return "Meanwhile, restarting your modem and router often clears connection problems."
	case domain.AgentBilling:
		return "Meanwhile, you can review your latest statement in the Billing section of your account."
	default:
		return "Could you tell me a bit more about what you need help with?"
	}
}

// Package intent clasifica el texto del usuario en una intencion con confianza.
package intent

import (
	"context"
	"errors"
	"strings"

	"support-router/internal/domain"
	"support-router/internal/textnorm"
)

// Classifier mapea texto crudo a un IntentResult.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.IntentResult, error)
}

var ErrClassificationDegraded = errors.New("intent classification degraded")

const (
	phraseWeight  = 0.8
	keywordWeight = 0.3
	maxConfidence = 0.95
)

// Pattern define los terminos de una intencion. Boost se suma una sola vez si hubo algun match.
type Pattern struct {
	Intent   string
	Keywords []string
	Phrases  []string
	Boost    float64
}

// DefaultPatterns es la tabla de intenciones de soporte, en orden de desempate.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Intent: domain.IntentBilling,
			Keywords: []string{
				"bill", "billing", "charge", "charges", "payment", "pay", "cost", "costs",
				"expensive", "overcharge", "refund", "credit", "balance", "account", "statement",
				"invoice", "fee", "fees", "price", "pricing", "autopay", "owe",
			},
			Phrases: []string{
				"my bill is so high", "help me understand my bill", "explain my charges",
				"why is my bill", "how much do i owe", "payment is due", "can't afford",
				"billing error", "wrong charge", "unexpected charge",
			},
			Boost: 0.3,
		},
		{
			Intent: domain.IntentTechnical,
			Keywords: []string{
				"internet", "wifi", "connection", "slow", "down", "outage", "not working",
				"broken", "fix", "repair", "troubleshoot", "speed", "bandwidth", "modem",
				"router", "signal", "network", "ethernet", "wireless", "connect",
				"disconnect", "reset", "reboot", "setup", "install", "configuration",
			},
			Phrases: []string{
				"internet is slow", "wifi not working", "connection problems", "can't connect",
				"internet is down", "no internet", "wifi issues", "slow speed", "internet out",
				"connection lost", "can't get online", "network problems",
			},
			Boost: 0.3,
		},
		{
			Intent: domain.IntentEquipment,
			Keywords: []string{
				"box", "cable box", "remote", "tv", "television", "dvr", "receiver",
				"equipment", "device", "hardware", "replacement", "upgrade", "activation", "activate",
			},
			Phrases: []string{
				"cable box not working", "remote not working", "tv problems", "need new equipment",
				"equipment broken", "box is broken", "remote broken", "dvr issues",
			},
			Boost: 0.2,
		},
		{
			Intent: domain.IntentGeneral,
			Keywords: []string{
				"help", "support", "assistance", "question", "info", "information",
				"service", "customer service", "representative", "agent", "talk to someone",
			},
			Phrases: []string{
				"can you help me", "need assistance", "have a question", "need help",
				"customer service", "talk to agent", "speak to someone",
			},
			Boost: 0.1,
		},
	}
}

type compiledPattern struct {
	intent   string
	keywords [][]string
	phrases  [][]string
	boost    float64
}

// KeywordClassifier es determinista: misma entrada, mismo resultado. No tiene efectos laterales.
type KeywordClassifier struct {
	patterns []compiledPattern
	maxRunes int
}

// NewKeywordClassifier compila los patrones. maxRunes acota el costo por mensaje.
func NewKeywordClassifier(patterns []Pattern, maxRunes int) *KeywordClassifier {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	c := &KeywordClassifier{maxRunes: maxRunes}
	for _, p := range patterns {
		cp := compiledPattern{intent: p.Intent, boost: p.Boost}
		for _, kw := range p.Keywords {
			if tokens := textnorm.Tokens(kw); len(tokens) > 0 {
				cp.keywords = append(cp.keywords, tokens)
			}
		}
		for _, ph := range p.Phrases {
			if tokens := textnorm.Tokens(ph); len(tokens) > 0 {
				cp.phrases = append(cp.phrases, tokens)
			}
		}
		c.patterns = append(c.patterns, cp)
	}
	return c
}

func (c *KeywordClassifier) Classify(_ context.Context, text string) (domain.IntentResult, error) {
	return c.ClassifyText(text), nil
}

// ClassifyText es la version pura, sin contexto.
func (c *KeywordClassifier) ClassifyText(text string) domain.IntentResult {
	text = strings.TrimSpace(textnorm.Truncate(text, c.maxRunes))
	tokens := textnorm.Tokens(text)
	if len(tokens) == 0 {
		return unknownResult()
	}

	best := unknownResult()
	for _, p := range c.patterns {
		score := 0.0
		for _, ph := range p.phrases {
			if textnorm.ContainsRun(tokens, ph) {
				score += phraseWeight
			}
		}
		for _, kw := range p.keywords {
			if textnorm.ContainsRun(tokens, kw) {
				score += keywordWeight
			}
		}
		if score == 0 {
			continue
		}
		score += p.boost
		if score > maxConfidence {
			score = maxConfidence
		}
		// Empate: gana la intencion declarada primero.
		if score > best.Confidence {
			best = domain.IntentResult{Intent: p.intent, Confidence: score}
		}
	}
	return best
}

func unknownResult() domain.IntentResult {
	return domain.IntentResult{Intent: domain.IntentUnknown, Confidence: 0}
}

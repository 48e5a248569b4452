package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"support-router/internal/domain"
	"support-router/internal/llm"
	"support-router/internal/textnorm"
)

const llmClassifierSystemPrompt = `Classify the customer support message into exactly one category:
- billing_inquiry: payments, charges, refunds, account balance, pricing
- technical_issue: internet, wifi, modem, router, outages, connection problems
- equipment_issue: cable box, remote, TV receiver, DVR, hardware replacement
- general_inquiry: general questions, store hours, talking to a person
- unknown: anything that does not fit

Respond with a JSON object only: {"intent": "<category>", "confidence": <0.0-1.0>}`

var knownIntents = map[string]struct{}{
	domain.IntentBilling:   {},
	domain.IntentTechnical: {},
	domain.IntentEquipment: {},
	domain.IntentGeneral:   {},
	domain.IntentUnknown:   {},
}

// LLMClassifier usa la capacidad de completado para clasificar.
// No es determinista; en el router siempre va envuelto en un FallbackClassifier.
type LLMClassifier struct {
	completer llm.Completer
	maxRunes  int
}

func NewLLMClassifier(completer llm.Completer, maxRunes int) *LLMClassifier {
	return &LLMClassifier{completer: completer, maxRunes: maxRunes}
}

type llmIntentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (domain.IntentResult, error) {
	text = strings.TrimSpace(textnorm.Truncate(text, c.maxRunes))
	if text == "" {
		return unknownResult(), nil
	}
	if c.completer == nil {
		return domain.IntentResult{}, fmt.Errorf("%w: %w", ErrClassificationDegraded, llm.ErrNotConfigured)
	}

	raw, err := c.completer.Complete(ctx, llmClassifierSystemPrompt, []llm.Turn{{Role: domain.RoleUser, Content: text}})
	if err != nil {
		return domain.IntentResult{}, fmt.Errorf("%w: %w", ErrClassificationDegraded, err)
	}

	obj := extractFirstJSONObject(cleanLLMJSONResponse(raw))
	if obj == "" {
		return domain.IntentResult{}, fmt.Errorf("%w: no json object in response", ErrClassificationDegraded)
	}
	var parsed llmIntentResponse
	if err := sonic.UnmarshalString(obj, &parsed); err != nil {
		return domain.IntentResult{}, fmt.Errorf("%w: %w", ErrClassificationDegraded, err)
	}

	label := strings.ToLower(strings.TrimSpace(parsed.Intent))
	if _, ok := knownIntents[label]; !ok {
		return domain.IntentResult{}, fmt.Errorf("%w: unknown label %q", ErrClassificationDegraded, parsed.Intent)
	}
	if label == domain.IntentUnknown {
		return unknownResult(), nil
	}
	conf := parsed.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return domain.IntentResult{Intent: label, Confidence: conf}, nil
}

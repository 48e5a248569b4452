package intent

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"support-router/internal/domain"
	"support-router/internal/llm"
)

func TestLLMClassifier_Classify(t *testing.T) {
	t.Run("respuesta json con fences", func(t *testing.T) {
		mock := &llm.MockClient{Response: "```json\n{\"intent\": \"billing_inquiry\", \"confidence\": 0.82}\n```"}
		c := NewLLMClassifier(mock, 5000)
		got, err := c.Classify(context.Background(), "charged twice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Intent != domain.IntentBilling || !almostEqual(got.Confidence, 0.82) {
			t.Fatalf("unexpected result: %+v", got)
		}
	})

	t.Run("etiqueta desconocida degrada", func(t *testing.T) {
		mock := &llm.MockClient{Response: `{"intent": "weather", "confidence": 0.9}`}
		c := NewLLMClassifier(mock, 5000)
		if _, err := c.Classify(context.Background(), "is it raining"); !errors.Is(err, ErrClassificationDegraded) {
			t.Fatalf("expected ErrClassificationDegraded, got %v", err)
		}
	})

	t.Run("error del modelo degrada", func(t *testing.T) {
		mock := &llm.MockClient{Err: errors.New("boom")}
		c := NewLLMClassifier(mock, 5000)
		if _, err := c.Classify(context.Background(), "hello"); !errors.Is(err, ErrClassificationDegraded) {
			t.Fatalf("expected ErrClassificationDegraded, got %v", err)
		}
	})

	t.Run("sin completer", func(t *testing.T) {
		c := NewLLMClassifier(nil, 5000)
		if _, err := c.Classify(context.Background(), "hello"); !errors.Is(err, llm.ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})

	t.Run("confianza fuera de rango se acota", func(t *testing.T) {
		mock := &llm.MockClient{Response: `ok {"intent": "technical_issue", "confidence": 3} done`}
		c := NewLLMClassifier(mock, 5000)
		got, err := c.Classify(context.Background(), "wifi")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Confidence != 1 {
			t.Fatalf("expected confidence clamped to 1, got %v", got.Confidence)
		}
	})
}

func TestFallbackClassifier_UsesSecondaryOnError(t *testing.T) {
	primary := NewLLMClassifier(&llm.MockClient{Err: errors.New("timeout")}, 5000)
	secondary := NewKeywordClassifier(nil, 5000)
	c := NewFallbackClassifier(primary, secondary, zap.NewNop())

	got, err := c.Classify(context.Background(), "How do I reset my modem?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Intent != domain.IntentTechnical {
		t.Fatalf("expected keyword fallback result, got %+v", got)
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	cases := map[string]string{
		`prefix {"a":"}"} suffix`:      `{"a":"}"}`,
		`{"a":{"b":1}}{"c":2}`:         `{"a":{"b":1}}`,
		`no json here`:                 ``,
		`{"unterminated": "value"`:     ``,
		`{"esc":"quote \" inside"} x`: `{"esc":"quote \" inside"}`,
	}
	for in, want := range cases {
		if got := extractFirstJSONObject(in); got != want {
			t.Fatalf("extractFirstJSONObject(%q) = %q, want %q", in, got, want)
		}
	}
}

package intent

import (
	"context"
	"math"
	"strings"
	"testing"

	"support-router/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestKeywordClassifier_Classify(t *testing.T) {
	c := NewKeywordClassifier(nil, 5000)

	cases := []struct {
		name       string
		text       string
		intent     string
		confidence float64
	}{
		{"reset de modem", "How do I reset my modem?", domain.IntentTechnical, 0.9},
		{"frase de facturacion", "Why is my bill so high this month?", domain.IntentBilling, 0.95},
		{"texto sin sentido", "asdfghjkl qwerty", domain.IntentUnknown, 0},
		{"vacio", "   ", domain.IntentUnknown, 0},
		{"equipo", "my dvr keeps freezing", domain.IntentEquipment, 0.5},
		{"ayuda general", "I need help", domain.IntentGeneral, 0.95},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Intent != tc.intent {
				t.Fatalf("expected intent %s, got %s (%.2f)", tc.intent, got.Intent, got.Confidence)
			}
			if !almostEqual(got.Confidence, tc.confidence) {
				t.Fatalf("expected confidence %.2f, got %.2f", tc.confidence, got.Confidence)
			}
		})
	}
}

func TestKeywordClassifier_TokenMatchNotSubstring(t *testing.T) {
	c := NewKeywordClassifier(nil, 5000)
	// "paying" no debe matchear "pay", ni "boxer" a "box".
	got := c.ClassifyText("boxers paying")
	if got.Intent != domain.IntentUnknown {
		t.Fatalf("expected unknown, got %+v", got)
	}
}

func TestKeywordClassifier_TieGoesToDeclaredOrder(t *testing.T) {
	patterns := []Pattern{
		{Intent: "first", Keywords: []string{"alpha"}},
		{Intent: "second", Keywords: []string{"beta"}},
	}
	c := NewKeywordClassifier(patterns, 100)
	got := c.ClassifyText("beta alpha")
	if got.Intent != "first" {
		t.Fatalf("expected first on tie, got %s", got.Intent)
	}
}

func TestKeywordClassifier_ConfidenceCapped(t *testing.T) {
	c := NewKeywordClassifier(nil, 5000)
	got := c.ClassifyText("internet is slow, wifi not working, no internet, connection problems, modem router reset")
	if got.Intent != domain.IntentTechnical {
		t.Fatalf("expected technical, got %s", got.Intent)
	}
	if got.Confidence > maxConfidence {
		t.Fatalf("confidence above cap: %v", got.Confidence)
	}
}

func TestKeywordClassifier_TruncatesLongInput(t *testing.T) {
	c := NewKeywordClassifier(nil, 10)
	text := strings.Repeat("x", 20) + " modem reset"
	got := c.ClassifyText(text)
	if got.Intent != domain.IntentUnknown {
		t.Fatalf("expected terms after the limit to be ignored, got %+v", got)
	}
}

func TestKeywordClassifier_Deterministic(t *testing.T) {
	c := NewKeywordClassifier(nil, 5000)
	first := c.ClassifyText("my remote is broken and my bill is wrong")
	for i := 0; i < 50; i++ {
		if got := c.ClassifyText("my remote is broken and my bill is wrong"); got != first {
			t.Fatalf("non-deterministic result: %+v vs %+v", got, first)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"support-router/internal/domain"
	"support-router/internal/llm"
	"support-router/internal/service"
)

// Scenario describe una pregunta y el ruteo esperado.
type Scenario struct {
	Input          string
	ExpectedAgent  domain.AgentID
	ExpectedSource domain.AnswerSource
}

// Result acumula las diferencias entre lo esperado y lo obtenido.
type Result struct {
	Scenario   Scenario
	AgentOK    bool
	SourceOK   bool
	Problems   []string
	JudgeScore int
}

func (r Result) Passed() bool { return r.AgentOK && r.SourceOK }

// defaultScenarios usa preguntas de la base de conocimiento incluida en data/.
func defaultScenarios() []Scenario {
	return []Scenario{
		{Input: "How do I reset my modem?", ExpectedAgent: domain.AgentTechSupport, ExpectedSource: domain.AnswerKB},
		{Input: "Why is my bill so high this month?", ExpectedAgent: domain.AgentBilling, ExpectedSource: domain.AnswerKB},
		{Input: "My internet connection is slow", ExpectedAgent: domain.AgentTechSupport, ExpectedSource: domain.AnswerKB},
		{Input: "I need help", ExpectedAgent: domain.AgentGeneral},
		{Input: "asdkjh qwe", ExpectedAgent: domain.AgentUnknown},
	}
}

// scoreOutcome compara el resultado del router con el escenario.
// Sin fuente esperada, cualquier respuesta que no sea kb se acepta.
func scoreOutcome(sc Scenario, out service.RouteOutcome) Result {
	res := Result{Scenario: sc, AgentOK: out.AgentID == sc.ExpectedAgent}
	if !res.AgentOK {
		res.Problems = append(res.Problems, fmt.Sprintf("agent: expected %s, got %s", sc.ExpectedAgent, out.AgentID))
	}

	source := out.Message.AnswerSource
	if sc.ExpectedSource == "" {
		res.SourceOK = source != domain.AnswerKB
	} else {
		res.SourceOK = source == sc.ExpectedSource
	}
	if !res.SourceOK {
		expected := string(sc.ExpectedSource)
		if expected == "" {
			expected = "fallback|none"
		}
		res.Problems = append(res.Problems, fmt.Sprintf("source: expected %s, got %s", expected, source))
	}
	return res
}

type Summary struct {
	Total        int
	AgentHits    int
	SourceHits   int
	Failed       int
	Judged       int
	JudgeAverage float64
}

func summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	judgeTotal := 0
	for _, r := range results {
		if r.AgentOK {
			s.AgentHits++
		}
		if r.SourceOK {
			s.SourceHits++
		}
		if !r.Passed() {
			s.Failed++
		}
		if r.JudgeScore > 0 {
			s.Judged++
			judgeTotal += r.JudgeScore
		}
	}
	if s.Judged > 0 {
		s.JudgeAverage = float64(judgeTotal) / float64(s.Judged)
	}
	return s
}

// judgeResponse es la respuesta estructurada del juez.
type judgeResponse struct {
	Reasoning        string `json:"reasoning"`
	HelpfulnessScore int    `json:"helpfulness_score"`
}

const judgePrompt = `You review answers from a customer support assistant.
Rate how helpful and on-topic the answer is for the question, from 1 (useless) to 5 (fully resolves it).
Respond ONLY with JSON: {"reasoning": "<short>", "helpfulness_score": <int 1-5>}`

func judgeAnswer(ctx context.Context, judge llm.Completer, input, answer string) (judgeResponse, error) {
	raw, err := judge.Complete(ctx, judgePrompt, []llm.Turn{
		{Role: domain.RoleUser, Content: fmt.Sprintf("Question: %s\nAnswer: %s", input, answer)},
	})
	if err != nil {
		return judgeResponse{}, err
	}
	return parseJudgeResponse(raw)
}

func parseJudgeResponse(raw string) (judgeResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return judgeResponse{}, fmt.Errorf("judge returned non-json: %q", raw)
	}
	var jr judgeResponse
	if err := sonic.UnmarshalString(raw[start:end+1], &jr); err != nil {
		return judgeResponse{}, fmt.Errorf("parse judge json: %w (raw=%q)", err, raw)
	}
	jr.HelpfulnessScore = clamp1to5(jr.HelpfulnessScore)
	return jr, nil
}

func clamp1to5(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

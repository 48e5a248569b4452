package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"support-router/internal/config"
	"support-router/internal/domain"
	"support-router/internal/intent"
	"support-router/internal/knowledge"
	"support-router/internal/llm"
	"support-router/internal/service"
)

const (
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	useJudge := flag.Bool("judge", false, "rate fallback answers with the configured LLM")
	flag.Parse()

	logger := zap.NewNop()
	index, err := knowledge.LoadFile(cfg.KBPath, cfg.KBAcceptThreshold, logger)
	if err != nil {
		log.Fatalf("knowledge base: %v", err)
	}

	var completer llm.Completer
	if client := llm.NewOpenAIClient(llm.Options{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	}, logger); client != nil {
		completer = client
	}

	escalator := service.NewFallbackEscalator(completer, index.Agent, service.EscalatorOptions{
		ContextMessages: cfg.FallbackContextMessages,
		MaxRetries:      cfg.FallbackMaxRetries,
		AttemptTimeout:  cfg.LLMTimeout,
	}, nil)
	router := service.NewAgentRouter(intent.NewKeywordClassifier(nil, cfg.MaxMessageLength), index, escalator, service.RouterOptions{
		ConfidenceFloor:  cfg.RoutingConfidenceFloor,
		CrossAgentSearch: cfg.KBCrossAgentSearch,
	}, logger)

	var results []Result
	for _, sc := range defaultScenarios() {
		fmt.Printf("%s[Input]%s %s\n", colorCyan, colorReset, sc.Input)

		out := router.Route(ctx, "routing-check", nil, sc.Input)
		res := scoreOutcome(sc, out)

		color := colorGreen
		if !res.Passed() {
			color = colorRed
		}
		fmt.Printf("%s[%s/%s]%s %s\n", color, out.AgentID, out.Message.AnswerSource, colorReset, out.Message.Content)
		for _, p := range res.Problems {
			fmt.Printf("  - %s\n", p)
		}

		if *useJudge && completer != nil && out.Message.AnswerSource == domain.AnswerFallback {
			jr, err := judgeAnswer(ctx, completer, sc.Input, out.Message.Content)
			if err != nil {
				fmt.Printf("  judge failed: %v\n", err)
			} else {
				res.JudgeScore = jr.HelpfulnessScore
				fmt.Printf("  Juez: %d/5 %q\n", jr.HelpfulnessScore, jr.Reasoning)
			}
		}
		fmt.Println()
		results = append(results, res)
	}

	s := summarize(results)
	fmt.Println("==== Resumen ====")
	fmt.Printf("Agente correcto: %d/%d | Fuente correcta: %d/%d", s.AgentHits, s.Total, s.SourceHits, s.Total)
	if s.Judged > 0 {
		fmt.Printf(" | Juez: %.2f/5", s.JudgeAverage)
	}
	fmt.Println()
	if s.Failed > 0 {
		os.Exit(1)
	}
}

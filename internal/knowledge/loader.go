package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"support-router/internal/domain"
)

var (
	ErrEmptyKnowledgeBase = errors.New("knowledge base has no valid entries")
	ErrUnsupportedFormat  = errors.New("unsupported knowledge base format")
)

type rawDocument struct {
	Agents []rawAgent `json:"agents" yaml:"agents"`
}

type rawAgent struct {
	ID         string           `json:"id" yaml:"id"`
	Name       string           `json:"name" yaml:"name"`
	Persona    string           `json:"persona" yaml:"persona"`
	Categories []map[string]any `json:"categories" yaml:"categories"`
}

// LoadFile lee el documento de la base de conocimiento (.yaml, .yml o .json) y construye el indice.
func LoadFile(path string, threshold float64, logger *zap.Logger) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return Parse(data, format, threshold, logger)
}

// Parse decodifica el documento. Las entradas malformadas se saltean con un warning,
// nunca abortan la carga.
func Parse(data []byte, format string, threshold float64, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var doc rawDocument
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case "json":
		if err := sonic.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	var (
		agents  []domain.Agent
		entries []domain.KnowledgeEntry
	)
	for i, ra := range doc.Agents {
		id := strings.TrimSpace(ra.ID)
		if id == "" {
			logger.Warn("knowledge base agent skipped", zap.Int("agent_index", i), zap.String("reason", "missing id"))
			continue
		}
		agent := domain.Agent{
			ID:      domain.AgentID(id),
			Name:    strings.TrimSpace(ra.Name),
			Persona: strings.TrimSpace(ra.Persona),
		}
		agents = append(agents, agent)

		for j, rc := range ra.Categories {
			entry, reason := toEntry(agent.ID, rc)
			if reason != "" {
				logger.Warn("knowledge base entry skipped",
					zap.String("agent_id", id),
					zap.Int("category_index", j),
					zap.String("reason", reason),
				)
				continue
			}
			entries = append(entries, entry)
		}
	}

	if len(entries) == 0 {
		return nil, ErrEmptyKnowledgeBase
	}

	idx := NewIndex(agents, entries, threshold)
	logger.Info("knowledge base loaded", zap.Int("agents", len(idx.agentIDs)), zap.Int("entries", idx.Len()))
	return idx, nil
}

func toEntry(agentID domain.AgentID, raw map[string]any) (domain.KnowledgeEntry, string) {
	question, ok := stringField(raw, "question")
	if !ok {
		return domain.KnowledgeEntry{}, "missing question"
	}
	answer, ok := stringField(raw, "answer")
	if !ok {
		return domain.KnowledgeEntry{}, "missing answer"
	}
	category, _ := stringField(raw, "name")

	rawKeywords, ok := raw["keywords"].([]any)
	if !ok || len(rawKeywords) == 0 {
		return domain.KnowledgeEntry{}, "missing keywords"
	}
	keywords := make([]string, 0, len(rawKeywords))
	seen := make(map[string]struct{}, len(rawKeywords))
	for _, k := range rawKeywords {
		s, ok := k.(string)
		if !ok {
			return domain.KnowledgeEntry{}, "keyword is not a string"
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keywords = append(keywords, s)
	}
	if len(keywords) == 0 {
		return domain.KnowledgeEntry{}, "missing keywords"
	}

	return domain.KnowledgeEntry{
		AgentID:  agentID,
		Category: category,
		Keywords: keywords,
		Question: question,
		Answer:   answer,
	}, ""
}

func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

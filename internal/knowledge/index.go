// Package knowledge contiene el indice en memoria de la base de conocimiento.
package knowledge

import (
	"sort"
	"strings"

	"support-router/internal/domain"
	"support-router/internal/textnorm"
)

// DefaultAcceptThreshold equivale a encontrar ~1/3 de las keywords de una entrada.
const DefaultAcceptThreshold = 0.34

// Match es una entrada aceptada junto con su puntaje.
type Match struct {
	Entry   domain.KnowledgeEntry
	Score   float64
	Overlap int
}

type indexedEntry struct {
	entry    domain.KnowledgeEntry
	keywords [][]string
	order    int
}

// Index no muta despues de construido: Lookup es seguro para lectores concurrentes sin locks.
type Index struct {
	threshold float64
	agents    map[domain.AgentID]domain.Agent
	agentIDs  []domain.AgentID
	byAgent   map[domain.AgentID][]indexedEntry
	size      int
}

// NewIndex construye el indice respetando el orden de carga de agents y entries.
// Un threshold negativo usa DefaultAcceptThreshold; 0 acepta cualquier coincidencia.
func NewIndex(agents []domain.Agent, entries []domain.KnowledgeEntry, threshold float64) *Index {
	if threshold < 0 {
		threshold = DefaultAcceptThreshold
	}
	idx := &Index{
		threshold: threshold,
		agents:    make(map[domain.AgentID]domain.Agent, len(agents)),
		byAgent:   make(map[domain.AgentID][]indexedEntry),
	}
	for _, a := range agents {
		if _, ok := idx.agents[a.ID]; ok {
			continue
		}
		if a.Name == "" {
			a.Name = domain.DefaultAgentName(a.ID)
		}
		idx.agents[a.ID] = a
		idx.agentIDs = append(idx.agentIDs, a.ID)
	}
	for i, e := range entries {
		kws := make([][]string, 0, len(e.Keywords))
		for _, kw := range e.Keywords {
			if tokens := textnorm.Tokens(kw); len(tokens) > 0 {
				kws = append(kws, tokens)
			}
		}
		if len(kws) == 0 {
			continue
		}
		if _, ok := idx.agents[e.AgentID]; !ok {
			idx.agents[e.AgentID] = domain.Agent{ID: e.AgentID, Name: domain.DefaultAgentName(e.AgentID)}
			idx.agentIDs = append(idx.agentIDs, e.AgentID)
		}
		idx.byAgent[e.AgentID] = append(idx.byAgent[e.AgentID], indexedEntry{entry: e, keywords: kws, order: i})
		idx.size++
	}
	return idx
}

// Threshold devuelve el umbral de aceptacion configurado.
func (idx *Index) Threshold() float64 {
	return idx.threshold
}

// Len devuelve la cantidad de entradas indexadas.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return idx.size
}

// Agent devuelve la definicion del agente; si no existe, un agente con nombre por defecto.
func (idx *Index) Agent(id domain.AgentID) domain.Agent {
	if idx != nil {
		if a, ok := idx.agents[id]; ok {
			return a
		}
	}
	return domain.Agent{ID: id, Name: domain.DefaultAgentName(id)}
}

// AgentIDs devuelve los agentes en orden de carga.
func (idx *Index) AgentIDs() []domain.AgentID {
	if idx == nil {
		return nil
	}
	out := make([]domain.AgentID, len(idx.agentIDs))
	copy(out, idx.agentIDs)
	return out
}

// Lookup busca la mejor entrada del agente para text.
// score = keywords presentes / keywords de la entrada; desempate por overlap y luego por orden de carga.
func (idx *Index) Lookup(agentID domain.AgentID, text string) (Match, bool) {
	if idx == nil {
		return Match{}, false
	}
	candidates := idx.byAgent[agentID]
	if len(candidates) == 0 {
		return Match{}, false
	}
	tokens := textnorm.Tokens(text)
	if len(tokens) == 0 {
		return Match{}, false
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}

	var (
		best  Match
		found bool
		order int
	)
	for _, c := range candidates {
		overlap := 0
		for _, kw := range c.keywords {
			if keywordPresent(kw, set) {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score := float64(overlap) / float64(len(c.keywords))
		if !found || better(score, overlap, c.order, best.Score, best.Overlap, order) {
			best = Match{Entry: c.entry, Score: score, Overlap: overlap}
			order = c.order
			found = true
		}
	}
	if !found || best.Score < idx.threshold {
		return Match{}, false
	}
	return best, true
}

func better(score float64, overlap, order int, bestScore float64, bestOverlap, bestOrder int) bool {
	if score != bestScore {
		return score > bestScore
	}
	if overlap != bestOverlap {
		return overlap > bestOverlap
	}
	return order < bestOrder
}

// keywordPresent: una keyword de varias palabras cuenta si estan todos sus terminos.
func keywordPresent(kw []string, set map[string]struct{}) bool {
	for _, t := range kw {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// Article es la vista publica de una entrada para el endpoint de busqueda.
type Article struct {
	AgentID   domain.AgentID `json:"agent"`
	AgentName string         `json:"agent_name"`
	Category  string         `json:"category"`
	Question  string         `json:"question"`
	Answer    string         `json:"answer"`
	Keywords  []string       `json:"keywords"`
}

// Search lista articulos cuyo texto o keywords contienen q (sin distinguir mayusculas).
// Con q vacio devuelve todos, en orden de carga.
func (idx *Index) Search(q string) []Article {
	if idx == nil {
		return []Article{}
	}
	q = strings.ToLower(strings.TrimSpace(q))
	var all []indexedEntry
	for _, id := range idx.agentIDs {
		all = append(all, idx.byAgent[id]...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].order < all[j].order })

	out := make([]Article, 0, len(all))
	for _, c := range all {
		if q != "" && !articleMatches(c.entry, q) {
			continue
		}
		out = append(out, Article{
			AgentID:   c.entry.AgentID,
			AgentName: idx.Agent(c.entry.AgentID).Name,
			Category:  c.entry.Category,
			Question:  c.entry.Question,
			Answer:    c.entry.Answer,
			Keywords:  c.entry.Keywords,
		})
	}
	return out
}

func articleMatches(e domain.KnowledgeEntry, q string) bool {
	if strings.Contains(strings.ToLower(e.Answer), q) || strings.Contains(strings.ToLower(e.Question), q) {
		return true
	}
	for _, kw := range e.Keywords {
		if strings.Contains(strings.ToLower(kw), q) {
			return true
		}
	}
	return false
}

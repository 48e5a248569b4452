package knowledge

import (
	"sync"
	"testing"

	"support-router/internal/domain"
)

func testEntries() []domain.KnowledgeEntry {
	return []domain.KnowledgeEntry{
		{AgentID: domain.AgentTechSupport, Category: "modem_reset", Keywords: []string{"reset", "modem"}, Question: "How do I reset my modem?", Answer: "Unplug it for 10 seconds."},
		{AgentID: domain.AgentTechSupport, Category: "slow_internet", Keywords: []string{"slow", "internet", "speed"}, Question: "Why is my internet slow?", Answer: "Run a speed test."},
		{AgentID: domain.AgentBilling, Category: "high_bill", Keywords: []string{"bill", "high"}, Question: "Why is my bill high?", Answer: "Promotions may have ended."},
	}
}

func TestIndexLookup_ModemScenario(t *testing.T) {
	idx := NewIndex(nil, testEntries(), DefaultAcceptThreshold)

	m, ok := idx.Lookup(domain.AgentTechSupport, "How do I reset my modem?")
	if !ok {
		t.Fatalf("expected a match")
	}
	if m.Entry.Category != "modem_reset" {
		t.Fatalf("expected modem_reset, got %q", m.Entry.Category)
	}
	if m.Score < 0.34 {
		t.Fatalf("expected score >= 0.34, got %v", m.Score)
	}
	if m.Overlap != 2 {
		t.Fatalf("expected overlap 2, got %d", m.Overlap)
	}
}

func TestIndexLookup_ScopedToAgent(t *testing.T) {
	idx := NewIndex(nil, testEntries(), DefaultAcceptThreshold)
	if _, ok := idx.Lookup(domain.AgentBilling, "How do I reset my modem?"); ok {
		t.Fatalf("billing must not see tech support entries")
	}
	if _, ok := idx.Lookup(domain.AgentGeneral, "anything"); ok {
		t.Fatalf("agent without entries must miss")
	}
}

func TestIndexLookup_BelowThreshold(t *testing.T) {
	entries := []domain.KnowledgeEntry{
		{AgentID: domain.AgentTechSupport, Keywords: []string{"router", "firmware", "update", "version"}, Question: "q", Answer: "a"},
	}
	idx := NewIndex(nil, entries, DefaultAcceptThreshold)
	// 1/4 = 0.25 < 0.34
	if _, ok := idx.Lookup(domain.AgentTechSupport, "my router"); ok {
		t.Fatalf("expected miss below threshold")
	}
	// 2/4 = 0.5
	if _, ok := idx.Lookup(domain.AgentTechSupport, "router firmware"); !ok {
		t.Fatalf("expected hit above threshold")
	}
}

func TestIndexLookup_TieBreaks(t *testing.T) {
	t.Run("mayor overlap gana con igual score", func(t *testing.T) {
		entries := []domain.KnowledgeEntry{
			{AgentID: domain.AgentGeneral, Category: "one", Keywords: []string{"hours", "store"}, Question: "q", Answer: "a"},
			{AgentID: domain.AgentGeneral, Category: "two", Keywords: []string{"hours", "store", "open", "today"}, Question: "q", Answer: "a"},
		}
		idx := NewIndex(nil, entries, DefaultAcceptThreshold)
		// one: 1/2 (overlap 1), two: 2/4 (overlap 2)
		m, ok := idx.Lookup(domain.AgentGeneral, "store open")
		if !ok || m.Entry.Category != "two" {
			t.Fatalf("expected higher overlap entry, got %+v ok=%v", m.Entry, ok)
		}
	})

	t.Run("orden de carga desempata", func(t *testing.T) {
		entries := []domain.KnowledgeEntry{
			{AgentID: domain.AgentGeneral, Category: "first", Keywords: []string{"contact"}, Question: "q", Answer: "a"},
			{AgentID: domain.AgentGeneral, Category: "second", Keywords: []string{"contact"}, Question: "q", Answer: "a"},
		}
		idx := NewIndex(nil, entries, DefaultAcceptThreshold)
		m, ok := idx.Lookup(domain.AgentGeneral, "contact")
		if !ok || m.Entry.Category != "first" {
			t.Fatalf("expected earliest entry, got %+v", m.Entry)
		}
	})
}

func TestIndexLookup_MultiWordKeyword(t *testing.T) {
	entries := []domain.KnowledgeEntry{
		{AgentID: domain.AgentTechSupport, Category: "box", Keywords: []string{"cable box"}, Question: "q", Answer: "a"},
	}
	idx := NewIndex(nil, entries, DefaultAcceptThreshold)
	if _, ok := idx.Lookup(domain.AgentTechSupport, "my cable is fine"); ok {
		t.Fatalf("partial multi-word keyword must not count")
	}
	if _, ok := idx.Lookup(domain.AgentTechSupport, "the box and the cable"); !ok {
		t.Fatalf("all tokens present must count")
	}
}

func TestIndexLookup_Deterministic(t *testing.T) {
	idx := NewIndex(nil, testEntries(), DefaultAcceptThreshold)
	first, ok := idx.Lookup(domain.AgentTechSupport, "internet speed is slow")
	if !ok {
		t.Fatalf("expected a match")
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, ok := idx.Lookup(domain.AgentTechSupport, "internet speed is slow")
			if !ok || m.Entry.Category != first.Entry.Category || m.Score != first.Score {
				t.Errorf("lookup not deterministic: %+v vs %+v", m, first)
			}
		}()
	}
	wg.Wait()
}

func TestIndexAgentDefaults(t *testing.T) {
	idx := NewIndex([]domain.Agent{{ID: domain.AgentBilling, Persona: "money"}}, testEntries(), -1)
	if idx.Threshold() != DefaultAcceptThreshold {
		t.Fatalf("expected default threshold, got %v", idx.Threshold())
	}
	if got := idx.Agent(domain.AgentBilling).Name; got != "Billing Support" {
		t.Fatalf("expected default name, got %q", got)
	}
	if got := idx.Agent("nobody").Name; got != "Support Agent" {
		t.Fatalf("expected fallback name, got %q", got)
	}
	ids := idx.AgentIDs()
	if len(ids) != 2 || ids[0] != domain.AgentBilling {
		t.Fatalf("expected declared agents first, got %v", ids)
	}
}

func TestIndexSearch(t *testing.T) {
	idx := NewIndex(nil, testEntries(), DefaultAcceptThreshold)

	all := idx.Search("")
	if len(all) != 3 {
		t.Fatalf("expected all articles, got %d", len(all))
	}
	if all[0].Category != "modem_reset" || all[2].Category != "high_bill" {
		t.Fatalf("expected load order, got %+v", all)
	}

	got := idx.Search("SPEED")
	if len(got) != 1 || got[0].Category != "slow_internet" {
		t.Fatalf("expected slow_internet, got %+v", got)
	}
	if got[0].AgentName != "Tech Support" {
		t.Fatalf("expected agent name, got %q", got[0].AgentName)
	}
}

func TestIndexZeroThresholdIsKept(t *testing.T) {
	entries := []domain.KnowledgeEntry{
		{AgentID: domain.AgentTechSupport, Category: "wide", Keywords: []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "modem"}, Answer: "wide"},
	}
	idx := NewIndex(nil, entries, 0)
	if idx.Threshold() != 0 {
		t.Fatalf("expected configured threshold 0, got %v", idx.Threshold())
	}
	m, ok := idx.Lookup(domain.AgentTechSupport, "my modem")
	if !ok || m.Score != 0.1 {
		t.Fatalf("expected low-overlap hit with threshold 0, got %+v ok=%v", m, ok)
	}
	if _, ok := idx.Lookup(domain.AgentTechSupport, "nothing here"); ok {
		t.Fatalf("zero overlap must never match")
	}
}

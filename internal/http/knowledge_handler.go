package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"support-router/internal/knowledge"
)

type KnowledgeSearcher interface {
	Search(q string) []knowledge.Article
}

type KnowledgeHandler struct {
	index KnowledgeSearcher
}

func NewKnowledgeHandler(index KnowledgeSearcher) *KnowledgeHandler {
	return &KnowledgeHandler{index: index}
}

// Search maneja GET /knowledge?q=.
func (h *KnowledgeHandler) Search(c *gin.Context) {
	articles := h.index.Search(c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

// HealthHandler reporta el estado del proceso.
type HealthHandler struct {
	knowledgeEntries func() int
	openConnections  func() int
}

func NewHealthHandler(knowledgeEntries, openConnections func() int) *HealthHandler {
	return &HealthHandler{knowledgeEntries: knowledgeEntries, openConnections: openConnections}
}

// Health maneja GET /healthz.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.knowledgeEntries != nil {
		resp["knowledgeEntries"] = h.knowledgeEntries()
	}
	if h.openConnections != nil {
		resp["openConnections"] = h.openConnections()
	}
	c.JSON(http.StatusOK, resp)
}

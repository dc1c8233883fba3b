package handler

import (
	"net/http"
	"strconv"
	"strings"

	"kolscope/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type analyzeRequest struct {
	Mentions []domain.Mention `json:"mentions" binding:"required,min=1"`
}

// Analyze godoc
// @Summary      Analyze token mentions
// @Description  Resolves historical prices for each mention and computes price impact per timeframe
// @Tags         impacts
// @Accept       json
// @Produce      json
// @Param        request  body  analyzeRequest  true  "Mentions to analyze"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/analyze [post]
func (h *Handler) Analyze(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.analyze")
	defer span.End()

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for i := range req.Mentions {
		req.Mentions[i].Token = strings.ToUpper(strings.TrimSpace(req.Mentions[i].Token))
		if req.Mentions[i].Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mention missing token symbol"})
			return
		}
		if req.Mentions[i].PostedAt.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mention missing posted_at"})
			return
		}
	}
	span.SetAttributes(attribute.Int("mentions", len(req.Mentions)))

	results := h.analysisService.AnalyzeBatch(ctx, req.Mentions)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GetRecentImpacts godoc
// @Summary      List recent impact results
// @Tags         impacts
// @Produce      json
// @Param        limit  query  int  false  "Number of results (default 50, max 200)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/impacts [get]
func (h *Handler) GetRecentImpacts(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-recent-impacts")
	defer span.End()

	limit := parseLimit(c.Query("limit"), 50, 200)
	results, err := h.analysisService.RecentImpacts(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"impacts": results})
}

// GetImpactsByToken godoc
// @Summary      List impact results for one token
// @Tags         impacts
// @Produce      json
// @Param        token  path   string  true   "Token symbol (e.g., WIF)"
// @Param        limit  query  int     false  "Number of results (default 50, max 200)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/impacts/{token} [get]
func (h *Handler) GetImpactsByToken(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-impacts-by-token")
	defer span.End()

	token := strings.ToUpper(c.Param("token"))
	span.SetAttributes(attribute.String("token", token))

	limit := parseLimit(c.Query("limit"), 50, 200)
	results, err := h.analysisService.ImpactsByToken(ctx, token, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "impacts": results})
}

func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}

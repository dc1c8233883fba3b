package handler

import (
	"net/http"
	"strings"
	"time"

	"kolscope/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetPrice godoc
// @Summary      Resolve a token price at a point in time
// @Description  Picks the token's best trading pair and resolves the price nearest the requested instant, falling back across providers
// @Tags         prices
// @Produce      json
// @Param        symbol  path   string  true   "Token symbol (e.g., WIF)"
// @Param        at      query  string  false  "Target instant (RFC 3339, default now)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/price/{symbol} [get]
func (h *Handler) GetPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-price")
	defer span.End()

	symbol := strings.ToUpper(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	target := time.Now().UTC()
	if at := c.Query("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid at, expected RFC 3339: " + at})
			return
		}
		target = parsed.UTC()
	}

	pair := h.resolver.SelectBestPair(ctx, symbol, target)
	if pair == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no pairs found for " + symbol})
		return
	}

	point, err := h.resolver.Resolve(ctx, symbol, target, domain.AdhocLabel(target), pair)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"at":     target,
		"pair":   pair,
		"price":  point,
	})
}

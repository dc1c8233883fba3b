package handler

import (
	"kolscope/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer          trace.Tracer
	analysisService *service.AnalysisService
	resolver        service.PriceResolver
}

func New(tracer trace.Tracer, analysisService *service.AnalysisService, resolver service.PriceResolver) *Handler {
	return &Handler{
		tracer:          tracer,
		analysisService: analysisService,
		resolver:        resolver,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/api/analyze", h.Analyze)
	r.GET("/api/impacts", h.GetRecentImpacts)
	r.GET("/api/impacts/:token", h.GetImpactsByToken)
	r.GET("/api/price/:symbol", h.GetPrice)
}

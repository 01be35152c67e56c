package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adsim/internal/causal"
)

type CausalHandler struct {
	Service *causal.Service
	Logger  *zap.Logger
}

func (h *CausalHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/runs/:id/days/:day/causal-analysis", h.analyze)
}

func (h *CausalHandler) analyze(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		Error(c, 400, "invalid day number", nil)
		return
	}
	analysis, err := h.Service.Analyze(c.Request.Context(), id, day)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("causal analysis failed",
				zap.Uint64("run_id", id), zap.Int("day", day), zap.Error(err))
		}
		Fail(c, err)
		return
	}
	Ok(c, analysis, map[string]any{"run_id": id})
}

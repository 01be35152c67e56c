package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adsim/internal/repository"
	"adsim/internal/searchterms"
	"adsim/internal/service"
)

type SearchTermsHandler struct {
	Service   *searchterms.Service
	Runs      *service.RunService
	Scenarios *service.ScenarioService
	Logger    *zap.Logger
}

func (h *SearchTermsHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/runs/:id/search-terms", h.report)
	r.GET("/api/v1/runs/:id/search-terms/analysis", h.analysis)
}

func (h *SearchTermsHandler) report(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	if _, err := h.Runs.Get(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	params := repository.ListSearchTermsParams{
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	if v := strings.TrimSpace(c.Query("match_type")); v != "" {
		params.MatchType = &v
	}
	rows, err := h.Service.Report(c.Request.Context(), id, params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, rows, map[string]any{"count": len(rows), "run_id": id})
}

func (h *SearchTermsHandler) analysis(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	run, err := h.Runs.Get(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	scenario, err := h.Scenarios.GetBySlug(ctx, run.ScenarioSlug)
	if err != nil {
		Fail(c, err)
		return
	}
	cfg, err := service.ParseConfig(scenario)
	if err != nil {
		Fail(c, err)
		return
	}
	summary, err := h.Runs.Results(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}

	analysis, err := h.Service.Analyze(ctx, run, cfg, summary.Totals.Cost)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("search terms analysis failed", zap.Uint64("run_id", id), zap.Error(err))
		}
		Fail(c, err)
		return
	}
	Ok(c, analysis, nil)
}

package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"adsim/internal/models"
	"adsim/internal/repository"
	"adsim/internal/service"
)

type RunHandler struct {
	Service *service.RunService
	Logger  *zap.Logger
}

func (h *RunHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/runs")
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/simulate-day", h.simulateDay)
	group.GET("/:id/results", h.results)
}

type createRunRequest struct {
	ScenarioSlug string `json:"scenario_slug" binding:"required"`
	Seed         *int64 `json:"seed"`
	DurationDays int    `json:"duration_days"`
}

type runView struct {
	ID           uint64     `json:"id"`
	ScenarioSlug string     `json:"scenario_slug"`
	Seed         int64      `json:"seed"`
	DurationDays int        `json:"duration_days"`
	CurrentDay   int        `json:"current_day"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type dailyResultView struct {
	DayNumber               int             `json:"day_number"`
	Impressions             int64           `json:"impressions"`
	Clicks                  int64           `json:"clicks"`
	Conversions             int64           `json:"conversions"`
	FraudClicks             int64           `json:"fraud_clicks"`
	TrackingLostConversions int64           `json:"tracking_lost_conversions"`
	Cost                    decimal.Decimal `json:"cost"`
	Revenue                 decimal.Decimal `json:"revenue"`
	CTR                     float64         `json:"ctr"`
	CVR                     float64         `json:"cvr"`
	CPC                     decimal.Decimal `json:"cpc"`
	CPA                     decimal.Decimal `json:"cpa"`
	ROAS                    decimal.Decimal `json:"roas"`
	AvgPosition             float64         `json:"avg_position"`
	AvgQualityScore         float64         `json:"avg_quality_score"`
	ImpressionShare         float64         `json:"impression_share"`
	LostISBudget            float64         `json:"lost_is_budget"`
	LostISRank              float64         `json:"lost_is_rank"`
}

func (h *RunHandler) create(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, "invalid request body: "+err.Error(), nil)
		return
	}
	run, err := h.Service.Create(c.Request.Context(), service.CreateRunParams{
		ScenarioSlug: req.ScenarioSlug,
		Seed:         req.Seed,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("run create failed", zap.Error(err))
		}
		Fail(c, err)
		return
	}
	Ok(c, toRunView(run), nil)
}

func (h *RunHandler) list(c *gin.Context) {
	params := repository.ListRunsParams{
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	if v := strings.TrimSpace(c.Query("scenario_slug")); v != "" {
		params.ScenarioSlug = &v
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		params.Status = &v
	}
	runs, err := h.Service.List(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	views := make([]runView, 0, len(runs))
	for i := range runs {
		views = append(views, toRunView(&runs[i]))
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

func (h *RunHandler) get(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	run, err := h.Service.Get(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, toRunView(run), nil)
}

func (h *RunHandler) simulateDay(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	run, result, err := h.Service.SimulateDay(c.Request.Context(), id)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("simulate day failed", zap.Uint64("run_id", id), zap.Error(err))
		}
		Fail(c, err)
		return
	}
	Ok(c, gin.H{
		"run": toRunView(run),
		"day": toDailyResultView(result),
	}, nil)
}

func (h *RunHandler) results(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	summary, err := h.Service.Results(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	days := make([]dailyResultView, 0, len(summary.Days))
	for i := range summary.Days {
		days = append(days, toDailyResultView(&summary.Days[i]))
	}
	Ok(c, gin.H{
		"run":    toRunView(summary.Run),
		"days":   days,
		"totals": summary.Totals,
	}, map[string]any{"day_count": len(days)})
}

func toRunView(run *models.Run) runView {
	return runView{
		ID:           run.ID,
		ScenarioSlug: run.ScenarioSlug,
		Seed:         run.Seed,
		DurationDays: run.DurationDays,
		CurrentDay:   run.CurrentDay,
		Status:       run.Status,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		CreatedAt:    run.CreatedAt,
	}
}

func toDailyResultView(d *models.DailyResult) dailyResultView {
	return dailyResultView{
		DayNumber:               d.DayNumber,
		Impressions:             d.Impressions,
		Clicks:                  d.Clicks,
		Conversions:             d.Conversions,
		FraudClicks:             d.FraudClicks,
		TrackingLostConversions: d.TrackingLostConversions,
		Cost:                    d.Cost,
		Revenue:                 d.Revenue,
		CTR:                     d.CTR(),
		CVR:                     d.CVR(),
		CPC:                     d.CPC(),
		CPA:                     d.CPA(),
		ROAS:                    d.ROAS(),
		AvgPosition:             d.AvgPosition,
		AvgQualityScore:         d.AvgQualityScore,
		ImpressionShare:         d.ImpressionShare,
		LostISBudget:            d.LostISBudget,
		LostISRank:              d.LostISRank,
	}
}

func runID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, 400, "invalid run id", nil)
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"adsim/internal/models"
	"adsim/internal/service"
)

type ScenarioHandler struct {
	Service *service.ScenarioService
	Logger  *zap.Logger
}

func (h *ScenarioHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/scenarios")
	group.GET("", h.list)
	group.GET("/:slug", h.get)
}

type scenarioView struct {
	ID          uint64          `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Market      string          `json:"market,omitempty"`
	Description string          `json:"description,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
}

func (h *ScenarioHandler) list(c *gin.Context) {
	items, err := h.Service.List(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	views := make([]scenarioView, 0, len(items))
	for _, item := range items {
		views = append(views, scenarioSummary(item))
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

func (h *ScenarioHandler) get(c *gin.Context) {
	item, err := h.Service.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		Fail(c, err)
		return
	}
	view := scenarioSummary(*item)
	view.Config = json.RawMessage(item.Config)
	Ok(c, view, nil)
}

func scenarioSummary(item models.Scenario) scenarioView {
	return scenarioView{
		ID:          item.ID,
		Slug:        item.Slug,
		Name:        item.Name,
		Market:      item.Market,
		Description: item.Description,
	}
}

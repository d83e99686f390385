package handler

import (
	"context"
	"time"

	numberingapp "github.com/erp/settlement/internal/application/numbering"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dateLayout is the calendar date format accepted in request bodies
const dateLayout = "2006-01-02"

// SeriesHandler serves the numbering series registry and issuance
type SeriesHandler struct {
	BaseHandler
	seriesService *numberingapp.SeriesService
	now           func() time.Time
}

// NewSeriesHandler creates a new SeriesHandler
func NewSeriesHandler(seriesService *numberingapp.SeriesService, log *zap.Logger) *SeriesHandler {
	return &SeriesHandler{
		BaseHandler:   newBaseHandler(log),
		seriesService: seriesService,
		now:           time.Now,
	}
}

// SeriesRequest is the body for creating or updating a series
type SeriesRequest struct {
	Name           string  `json:"name" binding:"notblank,max=100"`
	FormatTemplate string  `json:"format_template" binding:"notblank,max=100"`
	StartNumber    int64   `json:"start_number" binding:"gte=0"`
	EndNumber      *int64  `json:"end_number" binding:"omitempty,gte=0"`
	EffectiveFrom  string  `json:"effective_from" binding:"required,datetime=2006-01-02"`
	EffectiveTo    *string `json:"effective_to" binding:"omitempty,datetime=2006-01-02"`
	IsActive       bool    `json:"is_active"`
}

func (r SeriesRequest) window() (time.Time, *time.Time) {
	from, _ := time.Parse(dateLayout, r.EffectiveFrom)
	if r.EffectiveTo == nil {
		return from, nil
	}
	to, _ := time.Parse(dateLayout, *r.EffectiveTo)
	return from, &to
}

// IssueRequest optionally pins the date used to pick the series and render the number
type IssueRequest struct {
	AsOf string `json:"as_of" binding:"omitempty,datetime=2006-01-02"`
}

// Create registers a new series, activating it when requested
func (h *SeriesHandler) Create(c *gin.Context) {
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	from, to := req.window()

	series, err := h.seriesService.CreateSeries(c.Request.Context(), numberingapp.CreateSeriesCommand{
		Name:           req.Name,
		FormatTemplate: req.FormatTemplate,
		StartNumber:    req.StartNumber,
		EndNumber:      req.EndNumber,
		EffectiveFrom:  from,
		EffectiveTo:    to,
		IsActive:       req.IsActive,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, series)
}

// List returns a page of series
func (h *SeriesHandler) List(c *gin.Context) {
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	series, total, err := h.seriesService.ListSeries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, series, total, filter.Page, filter.PageSize)
}

// Get returns one series
func (h *SeriesHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id", "series")
	if !ok {
		return
	}
	series, err := h.seriesService.GetSeries(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, series)
}

// Update edits a series. The active flag is changed through Activate/Deactivate.
func (h *SeriesHandler) Update(c *gin.Context) {
	id, ok := h.pathUUID(c, "id", "series")
	if !ok {
		return
	}
	var req SeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	from, to := req.window()

	series, err := h.seriesService.UpdateSeries(c.Request.Context(), id, numberingapp.UpdateSeriesCommand{
		Name:           req.Name,
		FormatTemplate: req.FormatTemplate,
		StartNumber:    req.StartNumber,
		EndNumber:      req.EndNumber,
		EffectiveFrom:  from,
		EffectiveTo:    to,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, series)
}

// Activate makes the series the single active one
func (h *SeriesHandler) Activate(c *gin.Context) {
	h.toggle(c, h.seriesService.ActivateSeries)
}

// Deactivate switches the series off
func (h *SeriesHandler) Deactivate(c *gin.Context) {
	h.toggle(c, h.seriesService.DeactivateSeries)
}

func (h *SeriesHandler) toggle(c *gin.Context, op func(context.Context, uuid.UUID) (*numberingapp.SeriesResponse, error)) {
	id, ok := h.pathUUID(c, "id", "series")
	if !ok {
		return
	}
	series, err := op(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, series)
}

// Statistics reports usage of a series
func (h *SeriesHandler) Statistics(c *gin.Context) {
	id, ok := h.pathUUID(c, "id", "series")
	if !ok {
		return
	}
	stats, err := h.seriesService.Statistics(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// Issue reserves the next number of the active series outside of a settlement
func (h *SeriesHandler) Issue(c *gin.Context) {
	var req IssueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	asOf := h.now()
	if req.AsOf != "" {
		asOf, _ = time.Parse(dateLayout, req.AsOf)
	}

	result, err := h.seriesService.IssueNext(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// CheckAvailability reports whether a manually entered document number is free
func (h *SeriesHandler) CheckAvailability(c *gin.Context) {
	result, err := h.seriesService.ValidateManualNumber(c.Request.Context(), c.Param("number"), nil)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

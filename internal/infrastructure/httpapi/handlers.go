package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"NewsCurator/internal/domain"
)

type handler struct {
	pipeline Pipeline
	curation Curation
}

type runRequest struct {
	Action  string            `json:"action" binding:"required"`
	Options domain.RunOptions `json:"options"`
}

// runPipeline: POST /api/v1/pipeline/run
// Runs are detached from the request; cancel them through the runs endpoint.
func (h *handler) runPipeline(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json: "+err.Error())
		return
	}
	req.Options.Trigger = "api"

	report, err := h.pipeline.Run(context.WithoutCancel(c.Request.Context()), strings.TrimSpace(req.Action), req.Options)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// stats: GET /api/v1/pipeline/stats
func (h *handler) stats(c *gin.Context) {
	stats, err := h.pipeline.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// listRuns: GET /api/v1/pipeline/runs
func (h *handler) listRuns(c *gin.Context) {
	runs := h.pipeline.ActiveRuns()
	c.JSON(http.StatusOK, gin.H{"meta": gin.H{"count": len(runs)}, "data": runs})
}

// cancelRun: POST /api/v1/pipeline/runs/:id/cancel
func (h *handler) cancelRun(c *gin.Context) {
	id := c.Param("id")
	if !h.pipeline.CancelRun(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("run %s is not active", id)})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id, "status": "cancelling"})
}

type backfillRequest struct {
	RunID          string   `json:"run_id"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	SourceIDs      []string `json:"source_ids"`
	LimitPerSource int      `json:"limit_per_source"`
}

// backfill: POST /api/v1/backfill
// Dates are calendar days (2006-01-02) in UTC.
func (h *handler) backfill(c *gin.Context) {
	var body backfillRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid json: "+err.Error())
		return
	}
	start, err := parseDay(body.StartDate)
	if err != nil {
		badRequest(c, "start_date: "+err.Error())
		return
	}
	end, err := parseDay(body.EndDate)
	if err != nil {
		badRequest(c, "end_date: "+err.Error())
		return
	}

	report, err := h.pipeline.Backfill(context.WithoutCancel(c.Request.Context()), domain.BackfillRequest{
		RunID:          body.RunID,
		StartDate:      start,
		EndDate:        end,
		SourceIDs:      body.SourceIDs,
		LimitPerSource: body.LimitPerSource,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func parseDay(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD, got %q", raw)
	}
	return day, nil
}

// listCuration: GET /api/v1/curation?status=pending&source_id=bbc&q=...&page=1&per_page=20
func (h *handler) listCuration(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	perPage, err := queryInt(c, "per_page")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.curation.List(c.Request.Context(), domain.CurationFilter{
		Status:   domain.CurationStatus(c.Query("status")),
		SourceID: c.Query("source_id"),
		Query:    strings.TrimSpace(c.Query("q")),
		Page:     page,
		PerPage:  perPage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"meta": gin.H{
			"total":    result.Total,
			"page":     result.Page,
			"per_page": result.PerPage,
			"count":    len(result.Items),
		},
		"data": result.Items,
	})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// getCuration: GET /api/v1/curation/:id
func (h *handler) getCuration(c *gin.Context) {
	item, err := h.curation.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type batchRequest struct {
	Action string   `json:"action" binding:"required"`
	IDs    []string `json:"ids" binding:"required"`
}

// batch: POST /api/v1/curation/batch
func (h *handler) batch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json: "+err.Error())
		return
	}

	var result domain.BulkResult
	switch req.Action {
	case "delete":
		result = h.curation.DeleteMany(c.Request.Context(), req.IDs)
	case "send_to_curation":
		result = h.curation.SendToCuration(c.Request.Context(), req.IDs)
	default:
		badRequest(c, fmt.Sprintf("unknown batch action %q", req.Action))
		return
	}
	c.JSON(http.StatusOK, result)
}

type actionRequest struct {
	CategoryID string `json:"category_id"`
	Curator    string `json:"curator"`
	Notes      string `json:"notes"`
}

// curationAction: POST /api/v1/curation/:id/{approve|reject|edit|requeue|reopen|publish}
func (h *handler) curationAction(c *gin.Context) {
	var body actionRequest
	if err := bindOptionalJSON(c, &body); err != nil {
		badRequest(c, "invalid json: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	var (
		item domain.CurationItem
		err  error
	)
	switch domain.CurationAction(c.Param("action")) {
	case domain.ActionApprove:
		item, err = h.curation.Approve(ctx, id, body.CategoryID, body.Curator)
	case domain.ActionReject:
		item, err = h.curation.Reject(ctx, id, body.Notes)
	case domain.ActionEdit:
		item, err = h.curation.Edit(ctx, id, body.Notes, body.Curator)
	case domain.ActionRequeue:
		item, err = h.curation.Requeue(ctx, id, body.Notes)
	case domain.ActionReopen:
		item, err = h.curation.Reopen(ctx, id, body.Notes)
	case domain.ActionPublish:
		item, err = h.curation.Publish(ctx, id)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown action %q", c.Param("action"))})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

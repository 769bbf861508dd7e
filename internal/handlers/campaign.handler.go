package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"gorm.io/gorm"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/internal/scheduler"
	xhttp "github.com/whatsmanager/campaign-gateway/pkg/http"
)

type CampaignService interface {
	Schedule(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error)
	SendImmediate(ctx context.Context, req model.ImmediateSendRequest) (*model.Campaign, error)
	StartNow(ctx context.Context, campaignID int64) error
	Cancel(ctx context.Context, campaignID int64) error
	Progress(ctx context.Context, campaignID int64) (*model.CampaignProgress, error)
}

type CampaignStatsService interface {
	GetStats(ctx context.Context) ([]model.CampaignSummary, error)
}

type MessageStatsService interface {
	Stats(ctx context.Context) (*model.MessageStats, error)
}

type CampaignHandler struct {
	svc      CampaignService
	stats    CampaignStatsService
	msgStats MessageStatsService
}

func NewCampaignHandler(svc CampaignService, stats CampaignStatsService, msgStats MessageStatsService) *CampaignHandler {
	return &CampaignHandler{
		svc:      svc,
		stats:    stats,
		msgStats: msgStats,
	}
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler) {
	e.POST("/campaigns", h.CreateCampaign)
	e.POST("/campaigns/immediate", h.SendImmediateCampaign)
	e.POST("/campaigns/{id}/send", h.SendCampaign)
	e.POST("/campaigns/{id}/cancel", h.CancelCampaign)
	e.GET("/campaigns/{id}/progress", h.GetProgress)
	e.GET("/campaigns/stats", h.GetCampaignStats)
	e.GET("/messages/stats", h.GetMessageStats)
}

type createCampaignRequest struct {
	Name        string `json:"name"`
	TemplateID  int64  `json:"template_id"`
	ScheduledAt string `json:"scheduled_at"` // RFC3339 or YYYY-MM-DD, empty means send now
	CreatedBy   int64  `json:"created_by"`
}

type immediateSendRequest struct {
	TemplateID int64   `json:"template_id"`
	ContactIDs []int64 `json:"contact_ids"`
	CreatedBy  int64   `json:"created_by"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	p := model.CampaignCreateRequest{
		Name:       req.Name,
		TemplateID: req.TemplateID,
		CreatedBy:  req.CreatedBy,
	}
	if req.ScheduledAt != "" {
		t, err := parseTime(req.ScheduledAt)
		if err != nil {
			writeError(ctx, 400, "invalid scheduled_at: "+err.Error())
			return
		}
		p.ScheduledAt = &t
	}

	campaign, err := h.svc.Schedule(ctx, p)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 201, campaign)
}

// SendImmediateCampaign creates and starts a campaign for a pinned list
// of contacts.
func (h *CampaignHandler) SendImmediateCampaign(ctx *xhttp.RequestCtx) {
	var req immediateSendRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	campaign, err := h.svc.SendImmediate(ctx, model.ImmediateSendRequest{
		TemplateID: req.TemplateID,
		ContactIDs: req.ContactIDs,
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 201, campaign)
}

func (h *CampaignHandler) SendCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	if err := h.svc.StartNow(ctx, id); err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "started"})
}

func (h *CampaignHandler) CancelCampaign(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	if err := h.svc.Cancel(ctx, id); err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "cancelled"})
}

func (h *CampaignHandler) GetProgress(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	progress, err := h.svc.Progress(ctx, id)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 200, progress)
}

func (h *CampaignHandler) GetCampaignStats(ctx *xhttp.RequestCtx) {
	stats, err := h.stats.GetStats(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": stats})
}

func (h *CampaignHandler) GetMessageStats(ctx *xhttp.RequestCtx) {
	stats, err := h.msgStats.Stats(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, stats)
}

/* --------------------------------- Helpers ----------------------------------- */

func statusFor(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, scheduler.ErrTemplateNotFound):
		return 404
	case errors.Is(err, scheduler.ErrCampaignNotPending), errors.Is(err, scheduler.ErrCampaignCancelled):
		return 409
	default:
		return 400
	}
}

func pathID(ctx *xhttp.RequestCtx) (int64, error) {
	v, _ := ctx.UserValue("id").(string)
	return strconv.ParseInt(v, 10, 64)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

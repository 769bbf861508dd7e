package handlers

import (
	"context"

	"github.com/fasthttp/router"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/internal/template"
	xhttp "github.com/whatsmanager/campaign-gateway/pkg/http"
)

type TemplateService interface {
	Create(ctx context.Context, tpl *model.Template) error
	Get(ctx context.Context, id int64) (*model.Template, error)
	List(ctx context.Context) ([]model.Template, error)
	Update(ctx context.Context, tpl *model.Template) error
	Delete(ctx context.Context, id int64) error
}

type TemplateHandler struct {
	svc TemplateService
}

func NewTemplateHandler(svc TemplateService) *TemplateHandler {
	return &TemplateHandler{svc: svc}
}

func RegisterTemplateRoutes(e *router.Group, h *TemplateHandler) {
	e.POST("/templates", h.CreateTemplate)
	e.GET("/templates", h.ListTemplates)
	e.GET("/templates/{id}", h.GetTemplate)
	e.PUT("/templates/{id}", h.UpdateTemplate)
	e.DELETE("/templates/{id}", h.DeleteTemplate)
	e.POST("/templates/compliance", h.CheckCompliance)
}

type templateRequest struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	CreatedBy int64  `json:"created_by"`
}

func (h *TemplateHandler) CreateTemplate(ctx *xhttp.RequestCtx) {
	var req templateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	p := model.TemplateCreateRequest{Name: req.Name, Content: req.Content, CreatedBy: req.CreatedBy}
	if err := p.Validate(); err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	tpl := &model.Template{Name: req.Name, Content: req.Content, CreatedBy: req.CreatedBy}
	if err := h.svc.Create(ctx, tpl); err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, tpl)
}

func (h *TemplateHandler) ListTemplates(ctx *xhttp.RequestCtx) {
	templates, err := h.svc.List(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": templates})
}

func (h *TemplateHandler) GetTemplate(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, 400, "invalid template id")
		return
	}
	tpl, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 200, tpl)
}

func (h *TemplateHandler) UpdateTemplate(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, 400, "invalid template id")
		return
	}
	var req templateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	tpl, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	if req.Name != "" {
		tpl.Name = req.Name
	}
	if req.Content != "" {
		tpl.Content = req.Content
	}
	if err := h.svc.Update(ctx, tpl); err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, tpl)
}

func (h *TemplateHandler) DeleteTemplate(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx)
	if err != nil {
		writeError(ctx, 400, "invalid template id")
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeError(ctx, statusFor(err), err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "deleted"})
}

// CheckCompliance runs the static template checks without storing anything.
func (h *TemplateHandler) CheckCompliance(ctx *xhttp.RequestCtx) {
	var req templateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Content == "" {
		writeError(ctx, 400, "content is required")
		return
	}
	writeJSON(ctx, 200, template.CheckCompliance(req.Content))
}

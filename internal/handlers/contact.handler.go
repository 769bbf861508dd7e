package handlers

import (
	"context"

	"github.com/fasthttp/router"

	"github.com/whatsmanager/campaign-gateway/internal/model"
	"github.com/whatsmanager/campaign-gateway/internal/provider"
	xhttp "github.com/whatsmanager/campaign-gateway/pkg/http"
)

type ContactService interface {
	List(ctx context.Context) ([]model.Contact, error)
	BulkUpsert(ctx context.Context, contacts []model.Contact) (int64, error)
}

// PhoneValidator checks numbers before they enter the contact book, so a
// bad import fails loudly instead of at dispatch time. Satisfied by the
// provider client.
type PhoneValidator interface {
	ValidatePhone(raw string) provider.PhoneValidation
}

type ContactHandler struct {
	svc    ContactService
	phones PhoneValidator
}

func NewContactHandler(svc ContactService, phones PhoneValidator) *ContactHandler {
	return &ContactHandler{svc: svc, phones: phones}
}

func RegisterContactRoutes(e *router.Group, h *ContactHandler) {
	e.GET("/contacts", h.ListContacts)
	e.POST("/contacts/import", h.ImportContacts)
}

type importContactsRequest struct {
	Contacts []struct {
		PhoneNumber string `json:"phone_number"`
		Name        string `json:"name"`
		Email       string `json:"email"`
		Company     string `json:"company"`
		ExtraData   string `json:"extra_data"`
	} `json:"contacts"`
}

type importContactsResponse struct {
	Imported int64    `json:"imported"`
	Rejected []string `json:"rejected,omitempty"`
}

func (h *ContactHandler) ListContacts(ctx *xhttp.RequestCtx) {
	contacts, err := h.svc.List(ctx)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": contacts})
}

// ImportContacts upserts a batch of contacts keyed by phone number. Rows
// with invalid numbers are reported back, not imported.
func (h *ContactHandler) ImportContacts(ctx *xhttp.RequestCtx) {
	var req importContactsRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Contacts) == 0 {
		writeError(ctx, 400, "contacts is empty")
		return
	}

	var contacts []model.Contact
	var rejected []string
	for _, c := range req.Contacts {
		v := h.phones.ValidatePhone(c.PhoneNumber)
		if !v.Valid {
			rejected = append(rejected, c.PhoneNumber)
			continue
		}
		contacts = append(contacts, model.Contact{
			PhoneNumber: v.Formatted,
			Name:        c.Name,
			Email:       c.Email,
			Company:     c.Company,
			ExtraData:   c.ExtraData,
		})
	}

	var imported int64
	if len(contacts) > 0 {
		var err error
		imported, err = h.svc.BulkUpsert(ctx, contacts)
		if err != nil {
			writeError(ctx, 500, err.Error())
			return
		}
	}
	writeJSON(ctx, 200, importContactsResponse{Imported: imported, Rejected: rejected})
}

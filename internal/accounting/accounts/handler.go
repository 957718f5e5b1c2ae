package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var errorRules = []httpx.ErrorRule{
	{Target: ErrAccountNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: ErrDuplicateCode, Status: http.StatusConflict, Title: "Duplicate Code"},
	{Target: ErrDuplicateName, Status: http.StatusConflict, Title: "Duplicate Name"},
	{Target: ErrProtectedAccount, Status: http.StatusForbidden, Title: "Protected Account"},
	{Target: ErrAccountInUse, Status: http.StatusConflict, Title: "Account In Use"},
	{Target: ErrSelfParent, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: ErrInvalidType, Status: http.StatusBadRequest, Title: "Validation Failed"},
}

// Handler exposes the chart of accounts over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Post("/seed", h.handleSeed)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
	r.Post("/{id}/deactivate", h.handleDeactivate)
	r.Post("/{id}/reactivate", h.handleReactivate)
	r.Get("/{id}/balance", h.handleBalance)
}

type accountView struct {
	ID       int64                  `json:"id"`
	Code     string                 `json:"code"`
	Name     string                 `json:"name"`
	Type     accounting.AccountType `json:"type"`
	ParentID *int64                 `json:"parent_id,omitempty"`
	IsActive bool                   `json:"is_active"`
	IsSystem bool                   `json:"is_system"`
}

func newAccountView(acc accounting.Account) accountView {
	return accountView{
		ID:       acc.ID,
		Code:     acc.Code,
		Name:     acc.Name,
		Type:     acc.Type,
		ParentID: acc.ParentID,
		IsActive: acc.IsActive,
		IsSystem: acc.IsSystem,
	}
}

func newAccountViews(list []accounting.Account) []accountView {
	out := make([]accountView, 0, len(list))
	for _, acc := range list {
		out = append(out, newAccountView(acc))
	}
	return out
}

type createRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Code     string `json:"code" validate:"omitempty,max=20"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

type updateRequest struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=120"`
	Type *string `json:"type" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))
	list, err := h.service.List(r.Context(), scope, activeOnly)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAccountViews(list))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Create(r.Context(), scope, CreateInput{
		Name:     req.Name,
		Code:     req.Code,
		Type:     accounting.AccountType(req.Type),
		ParentID: req.ParentID,
		ActorID:  shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newAccountView(acc))
}

func (h *Handler) handleSeed(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.SeedDefaults(r.Context(), scope, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"created": newAccountViews(created)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	acc, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newAccountView(acc))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if req.Name != nil {
		if err := h.service.Rename(r.Context(), scope, id, *req.Name, actor); err != nil {
			h.fail(w, err)
			return
		}
	}
	if req.Type != nil {
		if err := h.service.ChangeType(r.Context(), scope, id, accounting.AccountType(*req.Type), actor); err != nil {
			h.fail(w, err)
			return
		}
	}
	h.handleGet(w, r)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.Deactivate(r.Context(), scope, id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "outcome": outcome})
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Reactivate(r.Context(), scope, id, shared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	h.handleGet(w, r)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	scope, id, ok := h.target(w, r)
	if !ok {
		return
	}
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	balance, err := h.service.Balance(r.Context(), scope, id, httpx.Deref(asOf))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, struct {
		ID      int64           `json:"id"`
		Balance decimal.Decimal `json:"balance"`
	}{ID: id, Balance: balance})
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (shared.Scope, int64, bool) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Scope{}, 0, false
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Scope{}, 0, false
	}
	return scope, id, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !isClientError(err) {
		h.logger.Error("accounts request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorRules...)
}

func isClientError(err error) bool {
	if errors.Is(err, shared.ErrInvalidInput) || errors.Is(err, shared.ErrScopeRequired) {
		return true
	}
	for _, rule := range errorRules {
		if errors.Is(err, rule.Target) {
			return true
		}
	}
	return false
}

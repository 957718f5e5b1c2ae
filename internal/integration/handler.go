package integration

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var errorRules = append([]httpx.ErrorRule{
	{Target: ErrInvalidDocument, Status: http.StatusBadRequest, Title: "Invalid Document"},
	{Target: ErrAccountNotMapped, Status: http.StatusUnprocessableEntity, Title: "Account Not Mapped"},
	{Target: inventory.ErrProductNotFound, Status: http.StatusUnprocessableEntity, Title: "Unknown Product"},
	{Target: inventory.ErrInvalidMethod, Status: http.StatusBadRequest, Title: "Validation Failed"},
}, accounting.ErrorRules...)

// Handler accepts business documents and posts them through Rules.
type Handler struct {
	logger *slog.Logger
	rules  *Rules
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, rules *Rules) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, rules: rules}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sales", serve[SaleInvoice, saleRequest](h, h.rules.PostSale))
	r.Post("/purchases", serve[PurchaseBill, billRequest](h, h.rules.PostPurchase))
	r.Post("/payments/received", serve[Payment, paymentRequest](h, h.rules.PostPaymentReceived))
	r.Post("/payments/made", serve[Payment, paymentRequest](h, h.rules.PostPaymentMade))
	r.Post("/credit-notes", serve[CreditNote, creditNoteRequest](h, h.rules.PostCreditNote))
	r.Post("/debit-notes", serve[PurchaseBill, billRequest](h, func(ctx context.Context, b PurchaseBill) (accounting.Batch, error) {
		return h.rules.PostDebitNote(ctx, DebitNote(b))
	}))
	r.Post("/fund-transfers", serve[FundTransfer, transferRequest](h, h.rules.PostFundTransfer))
	r.Post("/bad-debts", serve[BadDebtWriteOff, badDebtRequest](h, h.rules.PostBadDebt))
	r.Post("/depreciation", serve[DepreciationCharge, depreciationRequest](h, h.rules.PostDepreciation))
	r.Post("/asset-disposals", serve[AssetDisposal, disposalRequest](h, h.rules.PostAssetDisposal))
	r.Post("/payroll", serve[PayrollRun, payrollRequest](h, h.rules.PostPayroll))
	r.Post("/opening-balances", serve[OpeningBalance, openingRequest](h, h.rules.PostOpeningBalance))
	r.Post("/year-end-close", h.handleYearEndClose)
}

// document is a request body that converts into a posting rule input.
type document[T any] interface {
	build(scope shared.Scope, actorID int64) T
}

func serve[T any, R document[T]](h *Handler, post func(context.Context, T) (accounting.Batch, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := shared.ScopeFromContext(r.Context())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var req R
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		batch, err := post(r.Context(), req.build(scope, shared.ActorFromContext(r.Context())))
		if err != nil {
			h.logger.Warn("posting rejected", slog.String("path", r.URL.Path), slog.String("scope", scope.String()), slog.Any("error", err))
			httpx.RespondError(w, err, errorRules...)
			return
		}
		httpx.JSON(w, http.StatusCreated, accounting.NewBatchView(batch))
	}
}

func (h *Handler) handleYearEndClose(w http.ResponseWriter, r *http.Request) {
	scope, err := shared.ScopeFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req closeRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, posted, err := h.rules.PostYearEndClose(r.Context(), req.build(scope, shared.ActorFromContext(r.Context())))
	if err != nil {
		httpx.RespondError(w, err, errorRules...)
		return
	}
	if !posted {
		httpx.JSON(w, http.StatusOK, map[string]any{"posted": false})
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"posted": true, "batch": accounting.NewBatchView(batch)})
}

type saleItemRequest struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	Stocked   bool            `json:"stocked"`
}

type saleRequest struct {
	ID       int64             `json:"id" validate:"gt=0"`
	Number   string            `json:"number" validate:"required"`
	Date     httpx.Date        `json:"date" validate:"required"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	VAT      decimal.Decimal   `json:"vat"`
	Items    []saleItemRequest `json:"items" validate:"dive"`
	Method   string            `json:"method" validate:"omitempty,oneof=FIFO WEIGHTED_AVERAGE"`
}

func (q saleRequest) build(scope shared.Scope, actorID int64) SaleInvoice {
	inv := SaleInvoice{
		Scope:    scope,
		ID:       q.ID,
		Number:   q.Number,
		Date:     q.Date.Time,
		Subtotal: q.Subtotal,
		VAT:      q.VAT,
		Method:   inventory.Method(q.Method),
		ActorID:  actorID,
	}
	for _, item := range q.Items {
		inv.Items = append(inv.Items, SaleItem(item))
	}
	return inv
}

type billRequest struct {
	ID       int64           `json:"id" validate:"gt=0"`
	Number   string          `json:"number" validate:"required"`
	Date     httpx.Date      `json:"date" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
	VAT      decimal.Decimal `json:"vat"`
}

func (q billRequest) build(scope shared.Scope, actorID int64) PurchaseBill {
	return PurchaseBill{Scope: scope, ID: q.ID, Number: q.Number, Date: q.Date.Time, Subtotal: q.Subtotal, VAT: q.VAT, ActorID: actorID}
}

type paymentRequest struct {
	ID        int64           `json:"id" validate:"gt=0"`
	Number    string          `json:"number" validate:"required"`
	Date      httpx.Date      `json:"date" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Channel   string          `json:"channel" validate:"omitempty,oneof=CASH BANK"`
	AccountID int64           `json:"account_id" validate:"gte=0"`
}

func (q paymentRequest) build(scope shared.Scope, actorID int64) Payment {
	return Payment{
		Scope:     scope,
		ID:        q.ID,
		Number:    q.Number,
		Date:      q.Date.Time,
		Amount:    q.Amount,
		Channel:   Channel(q.Channel),
		AccountID: q.AccountID,
		ActorID:   actorID,
	}
}

type returnedItemRequest struct {
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Cost      decimal.Decimal `json:"cost"`
}

type creditNoteRequest struct {
	ID       int64                 `json:"id" validate:"gt=0"`
	Number   string                `json:"number" validate:"required"`
	Date     httpx.Date            `json:"date" validate:"required"`
	Subtotal decimal.Decimal       `json:"subtotal"`
	VAT      decimal.Decimal       `json:"vat"`
	Items    []returnedItemRequest `json:"items" validate:"dive"`
}

func (q creditNoteRequest) build(scope shared.Scope, actorID int64) CreditNote {
	note := CreditNote{Scope: scope, ID: q.ID, Number: q.Number, Date: q.Date.Time, Subtotal: q.Subtotal, VAT: q.VAT, ActorID: actorID}
	for _, item := range q.Items {
		note.Items = append(note.Items, ReturnedItem(item))
	}
	return note
}

type transferRequest struct {
	ID            int64           `json:"id" validate:"gt=0"`
	Reference     string          `json:"reference"`
	Date          httpx.Date      `json:"date" validate:"required"`
	FromAccountID int64           `json:"from_account_id" validate:"gt=0"`
	ToAccountID   int64           `json:"to_account_id" validate:"gt=0,nefield=FromAccountID"`
	Amount        decimal.Decimal `json:"amount"`
}

func (q transferRequest) build(scope shared.Scope, actorID int64) FundTransfer {
	return FundTransfer{
		Scope:         scope,
		ID:            q.ID,
		Reference:     q.Reference,
		Date:          q.Date.Time,
		FromAccountID: q.FromAccountID,
		ToAccountID:   q.ToAccountID,
		Amount:        q.Amount,
		ActorID:       actorID,
	}
}

type badDebtRequest struct {
	InvoiceID     int64           `json:"invoice_id" validate:"gt=0"`
	InvoiceNumber string          `json:"invoice_number"`
	Sequence      int             `json:"sequence" validate:"gte=0"`
	Date          httpx.Date      `json:"date" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason" validate:"max=255"`
}

func (q badDebtRequest) build(scope shared.Scope, actorID int64) BadDebtWriteOff {
	return BadDebtWriteOff{
		Scope:         scope,
		InvoiceID:     q.InvoiceID,
		InvoiceNumber: q.InvoiceNumber,
		Sequence:      q.Sequence,
		Date:          q.Date.Time,
		Amount:        q.Amount,
		Reason:        q.Reason,
		ActorID:       actorID,
	}
}

type depreciationRequest struct {
	AssetID   int64           `json:"asset_id" validate:"gt=0"`
	AssetCode string          `json:"asset_code" validate:"required"`
	Date      httpx.Date      `json:"date" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

func (q depreciationRequest) build(scope shared.Scope, actorID int64) DepreciationCharge {
	return DepreciationCharge{Scope: scope, AssetID: q.AssetID, AssetCode: q.AssetCode, Date: q.Date.Time, Amount: q.Amount, ActorID: actorID}
}

type disposalRequest struct {
	AssetID                 int64           `json:"asset_id" validate:"gt=0"`
	AssetCode               string          `json:"asset_code" validate:"required"`
	Date                    httpx.Date      `json:"date" validate:"required"`
	Cost                    decimal.Decimal `json:"cost"`
	AccumulatedDepreciation decimal.Decimal `json:"accumulated_depreciation"`
	Proceeds                decimal.Decimal `json:"proceeds"`
	AssetAccountID          int64           `json:"asset_account_id" validate:"gte=0"`
	ProceedsAccountID       int64           `json:"proceeds_account_id" validate:"gte=0"`
}

func (q disposalRequest) build(scope shared.Scope, actorID int64) AssetDisposal {
	return AssetDisposal{
		Scope:                   scope,
		AssetID:                 q.AssetID,
		AssetCode:               q.AssetCode,
		Date:                    q.Date.Time,
		Cost:                    q.Cost,
		AccumulatedDepreciation: q.AccumulatedDepreciation,
		Proceeds:                q.Proceeds,
		AssetAccountID:          q.AssetAccountID,
		ProceedsAccountID:       q.ProceedsAccountID,
		ActorID:                 actorID,
	}
}

type payrollRequest struct {
	ID        int64           `json:"id" validate:"gt=0"`
	Reference string          `json:"reference"`
	Date      httpx.Date      `json:"date" validate:"required"`
	Gross     decimal.Decimal `json:"gross"`
	PAYE      decimal.Decimal `json:"paye"`
	Pension   decimal.Decimal `json:"pension"`
	Net       decimal.Decimal `json:"net"`
	Channel   string          `json:"channel" validate:"omitempty,oneof=CASH BANK"`
}

func (q payrollRequest) build(scope shared.Scope, actorID int64) PayrollRun {
	return PayrollRun{
		Scope:     scope,
		ID:        q.ID,
		Reference: q.Reference,
		Date:      q.Date.Time,
		Gross:     q.Gross,
		PAYE:      q.PAYE,
		Pension:   q.Pension,
		Net:       q.Net,
		Channel:   Channel(q.Channel),
		ActorID:   actorID,
	}
}

type openingRequest struct {
	AccountID int64           `json:"account_id" validate:"gt=0"`
	Date      httpx.Date      `json:"date" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

func (q openingRequest) build(scope shared.Scope, actorID int64) OpeningBalance {
	return OpeningBalance{Scope: scope, AccountID: q.AccountID, Date: q.Date.Time, Amount: q.Amount, ActorID: actorID}
}

type closeRequest struct {
	FiscalYearID int64      `json:"fiscal_year_id" validate:"gt=0"`
	Start        httpx.Date `json:"start" validate:"required"`
	End          httpx.Date `json:"end" validate:"required"`
}

func (q closeRequest) build(scope shared.Scope, actorID int64) YearEndClose {
	return YearEndClose{Scope: scope, FiscalYearID: q.FiscalYearID, Start: q.Start.Time, End: q.End.Time, ActorID: actorID}
}

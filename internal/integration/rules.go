package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Ledger exposes the posting protocol to posting rules.
type Ledger interface {
	Post(ctx context.Context, input accounting.PostingInput) (accounting.Batch, error)
	Batch(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (accounting.Batch, error)
}

// AccountGetter loads an explicitly chosen account.
type AccountGetter interface {
	Get(ctx context.Context, businessID, id int64) (accounting.Account, error)
}

// Valuation prices stocked sale lines.
type Valuation interface {
	QuoteSale(ctx context.Context, scope shared.Scope, productID int64, qty decimal.Decimal, method inventory.Method, asOf time.Time) (inventory.SaleCost, error)
}

// Sequencer issues per-business document numbers.
type Sequencer interface {
	Next(ctx context.Context, businessID int64, prefix string) (string, error)
}

// Statements supplies the income statement used by year-end closing.
type Statements interface {
	IncomeStatement(ctx context.Context, scope shared.Scope, start, end time.Time) (reports.IncomeStatement, error)
}

var (
	// ErrAccountNotMapped indicates no account satisfies a role.
	ErrAccountNotMapped = errors.New("integration: account not mapped")
	// ErrInvalidDocument indicates a document that cannot produce a batch.
	ErrInvalidDocument = errors.New("integration: invalid document")
)

// MissingAccountError names the role that could not be resolved.
type MissingAccountError struct {
	Role string
}

func (e *MissingAccountError) Error() string {
	return fmt.Sprintf("integration: no account for role %q", e.Role)
}

// Is matches ErrAccountNotMapped.
func (e *MissingAccountError) Is(target error) bool {
	return target == ErrAccountNotMapped
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// Rules turns business documents into balanced ledger batches. Every batch id
// is derived from the document, so a redelivered document is a no-op.
type Rules struct {
	ledger     Ledger
	resolver   accounts.SemanticAccountResolver
	accounts   AccountGetter
	valuation  Valuation
	method     inventory.Method
	sequencer  Sequencer
	statements Statements
	logger     *slog.Logger
}

// NewRules constructs Rules.
func NewRules(ledger Ledger, resolver accounts.SemanticAccountResolver, accts AccountGetter, logger *slog.Logger) *Rules {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rules{ledger: ledger, resolver: resolver, accounts: accts, logger: logger}
}

// WithValuation enables cost of goods sold on stocked sale lines.
func (r *Rules) WithValuation(v Valuation, method inventory.Method) *Rules {
	r.valuation = v
	r.method = method
	return r
}

// WithSequencer attaches the document number source.
func (r *Rules) WithSequencer(seq Sequencer) *Rules {
	r.sequencer = seq
	return r
}

// WithStatements attaches the report source for closing entries.
func (r *Rules) WithStatements(src Statements) *Rules {
	r.statements = src
	return r
}

// account resolves the first role that matches.
func (r *Rules) account(ctx context.Context, scope shared.Scope, roles ...accounts.Role) (int64, error) {
	for _, role := range roles {
		acc, ok, err := r.resolver.Resolve(ctx, scope, role)
		if err != nil {
			return 0, err
		}
		if ok {
			return acc.ID, nil
		}
	}
	return 0, &MissingAccountError{Role: roles[0].Key}
}

func (r *Rules) channelAccount(ctx context.Context, scope shared.Scope, channel Channel, explicit int64) (int64, error) {
	if explicit != 0 {
		acc, err := r.accounts.Get(ctx, scope.BusinessID, explicit)
		if err != nil {
			return 0, err
		}
		if acc.Type != accounting.AccountTypeAsset {
			return 0, invalid("account %s is not an asset", acc.Code)
		}
		return acc.ID, nil
	}
	if channel == ChannelBank {
		return r.account(ctx, scope, accounts.RoleBank, accounts.RoleCash)
	}
	return r.account(ctx, scope, accounts.RoleCash, accounts.RoleBank)
}

func (r *Rules) post(ctx context.Context, purpose string, input accounting.PostingInput) (accounting.Batch, error) {
	input.Lines = compact(input.Lines)
	input.BatchID = accounting.SourceBatchID(input.Scope.BusinessID, input.Document, purpose)
	batch, err := r.ledger.Post(ctx, input)
	if errors.Is(err, accounting.ErrBatchAlreadyPosted) {
		r.logger.Info("integration: document already posted",
			slog.Int64("business_id", input.Scope.BusinessID),
			slog.String("document", string(input.Document.Type)),
			slog.Int64("document_id", input.Document.ID),
			slog.String("purpose", purpose))
		return accounting.Batch{ID: input.BatchID, Scope: input.Scope, Date: input.Date, Document: input.Document}, nil
	}
	return batch, err
}

// PostSale books revenue, VAT and receivable for an invoice, plus cost of
// goods sold for each stocked line. Cost must be quoted before the sale is
// recorded in inventory.
func (r *Rules) PostSale(ctx context.Context, inv SaleInvoice) (accounting.Batch, error) {
	if inv.Subtotal.IsNegative() || inv.VAT.IsNegative() {
		return accounting.Batch{}, invalid("sale %s has negative amounts", inv.Number)
	}
	receivable, err := r.account(ctx, inv.Scope, accounts.RoleReceivable)
	if err != nil {
		return accounting.Batch{}, err
	}
	sales, err := r.account(ctx, inv.Scope, accounts.RoleSales)
	if err != nil {
		return accounting.Batch{}, err
	}
	subtotal, vat := round2(inv.Subtotal), round2(inv.VAT)
	lines := []accounting.PostingLine{
		accounting.Dr(receivable, subtotal.Add(vat), "Receivable "+inv.Number),
		accounting.Cr(sales, subtotal, "Sales "+inv.Number),
	}
	if vat.IsPositive() {
		vatPayable, err := r.account(ctx, inv.Scope, accounts.RoleVATPayable)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines, accounting.Cr(vatPayable, vat, "Output VAT "+inv.Number))
	}
	cost, err := r.costOfSale(ctx, inv)
	if err != nil {
		return accounting.Batch{}, err
	}
	if cost.IsPositive() {
		cogs, err := r.account(ctx, inv.Scope, accounts.RoleCOGS)
		if err != nil {
			return accounting.Batch{}, err
		}
		stock, err := r.account(ctx, inv.Scope, accounts.RoleInventory)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines,
			accounting.Dr(cogs, cost, "COGS "+inv.Number),
			accounting.Cr(stock, cost, "Inventory "+inv.Number))
	}
	return r.post(ctx, "sale", accounting.PostingInput{
		Scope:     inv.Scope,
		Date:      inv.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentSalesInvoice, ID: inv.ID, Reference: inv.Number},
		Reference: inv.Number,
		Memo:      "Sales invoice " + inv.Number,
		PostedBy:  inv.ActorID,
		Lines:     lines,
	})
}

// costOfSale quotes each product once for its summed quantity, so lines of
// the same product draw successive FIFO layers as the replay does.
func (r *Rules) costOfSale(ctx context.Context, inv SaleInvoice) (decimal.Decimal, error) {
	var products []int64
	quantities := make(map[int64]decimal.Decimal)
	for _, item := range inv.Items {
		if !item.Stocked || !item.Quantity.IsPositive() {
			continue
		}
		if _, seen := quantities[item.ProductID]; !seen {
			products = append(products, item.ProductID)
			quantities[item.ProductID] = decimal.Zero
		}
		quantities[item.ProductID] = quantities[item.ProductID].Add(item.Quantity)
	}
	if len(products) == 0 {
		return decimal.Zero, nil
	}
	if r.valuation == nil {
		return decimal.Zero, invalid("sale %s has stocked lines but no valuation engine", inv.Number)
	}
	method := inv.Method
	if method == "" {
		method = r.method
	}
	total := decimal.Zero
	for _, id := range products {
		quote, err := r.valuation.QuoteSale(ctx, inv.Scope, id, quantities[id], method, inv.Date)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(quote.Cost)
	}
	return round2(total), nil
}

// PostPurchase books stock and input VAT against the supplier payable.
func (r *Rules) PostPurchase(ctx context.Context, bill PurchaseBill) (accounting.Batch, error) {
	if bill.Subtotal.IsNegative() || bill.VAT.IsNegative() {
		return accounting.Batch{}, invalid("bill %s has negative amounts", bill.Number)
	}
	stock, err := r.account(ctx, bill.Scope, accounts.RoleInventory)
	if err != nil {
		return accounting.Batch{}, err
	}
	payable, err := r.account(ctx, bill.Scope, accounts.RolePayable)
	if err != nil {
		return accounting.Batch{}, err
	}
	subtotal, vat := round2(bill.Subtotal), round2(bill.VAT)
	lines := []accounting.PostingLine{
		accounting.Dr(stock, subtotal, "Inventory "+bill.Number),
		accounting.Cr(payable, subtotal.Add(vat), "Payable "+bill.Number),
	}
	if vat.IsPositive() {
		vatReceivable, err := r.account(ctx, bill.Scope, accounts.RoleVATReceivable)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines, accounting.Dr(vatReceivable, vat, "Input VAT "+bill.Number))
	}
	return r.post(ctx, "purchase", accounting.PostingInput{
		Scope:     bill.Scope,
		Date:      bill.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentPurchaseBill, ID: bill.ID, Reference: bill.Number},
		Reference: bill.Number,
		Memo:      "Purchase bill " + bill.Number,
		PostedBy:  bill.ActorID,
		Lines:     lines,
	})
}

// PostPaymentReceived books a customer receipt.
func (r *Rules) PostPaymentReceived(ctx context.Context, p Payment) (accounting.Batch, error) {
	if !p.Amount.IsPositive() {
		return accounting.Batch{}, invalid("payment %s amount must be positive", p.Number)
	}
	money, err := r.channelAccount(ctx, p.Scope, p.Channel, p.AccountID)
	if err != nil {
		return accounting.Batch{}, err
	}
	receivable, err := r.account(ctx, p.Scope, accounts.RoleReceivable)
	if err != nil {
		return accounting.Batch{}, err
	}
	amount := round2(p.Amount)
	return r.post(ctx, "receipt", accounting.PostingInput{
		Scope:     p.Scope,
		Date:      p.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentPayment, ID: p.ID, Reference: p.Number},
		Reference: p.Number,
		Memo:      "Payment received " + p.Number,
		PostedBy:  p.ActorID,
		Lines: []accounting.PostingLine{
			accounting.Dr(money, amount, "Receipt "+p.Number),
			accounting.Cr(receivable, amount, "Settle receivable "+p.Number),
		},
	})
}

// PostPaymentMade books a supplier payment. The paying account may not go
// negative.
func (r *Rules) PostPaymentMade(ctx context.Context, p Payment) (accounting.Batch, error) {
	if !p.Amount.IsPositive() {
		return accounting.Batch{}, invalid("payment %s amount must be positive", p.Number)
	}
	money, err := r.channelAccount(ctx, p.Scope, p.Channel, p.AccountID)
	if err != nil {
		return accounting.Batch{}, err
	}
	payable, err := r.account(ctx, p.Scope, accounts.RolePayable)
	if err != nil {
		return accounting.Batch{}, err
	}
	amount := round2(p.Amount)
	return r.post(ctx, "disbursement", accounting.PostingInput{
		Scope:     p.Scope,
		Date:      p.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentPayment, ID: p.ID, Reference: p.Number},
		Reference: p.Number,
		Memo:      "Payment made " + p.Number,
		PostedBy:  p.ActorID,
		Lines: []accounting.PostingLine{
			accounting.Dr(payable, amount, "Settle payable "+p.Number),
			accounting.Cr(money, amount, "Disbursement "+p.Number),
		},
		Guards: []int64{money},
	})
}

// PostCreditNote reverses revenue and VAT for a sales return and puts the
// returned goods back at the cost originally charged.
func (r *Rules) PostCreditNote(ctx context.Context, note CreditNote) (accounting.Batch, error) {
	if note.Subtotal.IsNegative() || note.VAT.IsNegative() {
		return accounting.Batch{}, invalid("credit note %s has negative amounts", note.Number)
	}
	receivable, err := r.account(ctx, note.Scope, accounts.RoleReceivable)
	if err != nil {
		return accounting.Batch{}, err
	}
	sales, err := r.account(ctx, note.Scope, accounts.RoleSales)
	if err != nil {
		return accounting.Batch{}, err
	}
	subtotal, vat := round2(note.Subtotal), round2(note.VAT)
	lines := []accounting.PostingLine{
		accounting.Dr(sales, subtotal, "Sales return "+note.Number),
		accounting.Cr(receivable, subtotal.Add(vat), "Credit "+note.Number),
	}
	if vat.IsPositive() {
		vatPayable, err := r.account(ctx, note.Scope, accounts.RoleVATPayable)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines, accounting.Dr(vatPayable, vat, "Output VAT reversal "+note.Number))
	}
	cost := decimal.Zero
	for _, item := range note.Items {
		cost = cost.Add(item.Cost)
	}
	cost = round2(cost)
	if cost.IsPositive() {
		stock, err := r.account(ctx, note.Scope, accounts.RoleInventory)
		if err != nil {
			return accounting.Batch{}, err
		}
		cogs, err := r.account(ctx, note.Scope, accounts.RoleCOGS)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines,
			accounting.Dr(stock, cost, "Returned stock "+note.Number),
			accounting.Cr(cogs, cost, "COGS reversal "+note.Number))
	}
	return r.post(ctx, "sales_return", accounting.PostingInput{
		Scope:     note.Scope,
		Date:      note.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentCreditNote, ID: note.ID, Reference: note.Number},
		Reference: note.Number,
		Memo:      "Credit note " + note.Number,
		PostedBy:  note.ActorID,
		Lines:     lines,
	})
}

// PostDebitNote books a purchase return against the supplier.
func (r *Rules) PostDebitNote(ctx context.Context, note DebitNote) (accounting.Batch, error) {
	if note.Subtotal.IsNegative() || note.VAT.IsNegative() {
		return accounting.Batch{}, invalid("debit note %s has negative amounts", note.Number)
	}
	payable, err := r.account(ctx, note.Scope, accounts.RolePayable)
	if err != nil {
		return accounting.Batch{}, err
	}
	stock, err := r.account(ctx, note.Scope, accounts.RoleInventory)
	if err != nil {
		return accounting.Batch{}, err
	}
	subtotal, vat := round2(note.Subtotal), round2(note.VAT)
	lines := []accounting.PostingLine{
		accounting.Dr(payable, subtotal.Add(vat), "Debit "+note.Number),
		accounting.Cr(stock, subtotal, "Returned to supplier "+note.Number),
	}
	if vat.IsPositive() {
		vatReceivable, err := r.account(ctx, note.Scope, accounts.RoleVATReceivable)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines, accounting.Cr(vatReceivable, vat, "Input VAT reversal "+note.Number))
	}
	return r.post(ctx, "purchase_return", accounting.PostingInput{
		Scope:     note.Scope,
		Date:      note.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentDebitNote, ID: note.ID, Reference: note.Number},
		Reference: note.Number,
		Memo:      "Debit note " + note.Number,
		PostedBy:  note.ActorID,
		Lines:     lines,
	})
}

// PostFundTransfer moves money between two distinct asset accounts. The
// source may not go negative.
func (r *Rules) PostFundTransfer(ctx context.Context, t FundTransfer) (accounting.Batch, error) {
	if !t.Amount.IsPositive() {
		return accounting.Batch{}, invalid("transfer %s amount must be positive", t.Reference)
	}
	if t.FromAccountID == t.ToAccountID {
		return accounting.Batch{}, invalid("transfer %s uses the same account twice", t.Reference)
	}
	for _, id := range []int64{t.FromAccountID, t.ToAccountID} {
		acc, err := r.accounts.Get(ctx, t.Scope.BusinessID, id)
		if err != nil {
			return accounting.Batch{}, err
		}
		if acc.Type != accounting.AccountTypeAsset {
			return accounting.Batch{}, invalid("transfer %s: account %s is not an asset", t.Reference, acc.Code)
		}
	}
	amount := round2(t.Amount)
	return r.post(ctx, "transfer", accounting.PostingInput{
		Scope:     t.Scope,
		Date:      t.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentFundTransfer, ID: t.ID, Reference: t.Reference},
		Reference: t.Reference,
		Memo:      "Fund transfer " + t.Reference,
		PostedBy:  t.ActorID,
		Lines: []accounting.PostingLine{
			accounting.Dr(t.ToAccountID, amount, "Transfer in "+t.Reference),
			accounting.Cr(t.FromAccountID, amount, "Transfer out "+t.Reference),
		},
		Guards: []int64{t.FromAccountID},
	})
}

// PostBadDebt writes off an uncollectible receivable. Each write-off of an
// invoice carries its own sequence; the BD number is drawn only when that
// write-off has not been posted yet.
func (r *Rules) PostBadDebt(ctx context.Context, w BadDebtWriteOff) (accounting.Batch, error) {
	if !w.Amount.IsPositive() {
		return accounting.Batch{}, invalid("write-off of %s amount must be positive", w.InvoiceNumber)
	}
	if w.Sequence < 0 {
		return accounting.Batch{}, invalid("write-off of %s sequence must not be negative", w.InvoiceNumber)
	}
	expense, err := r.account(ctx, w.Scope, accounts.RoleBadDebt)
	if err != nil {
		return accounting.Batch{}, err
	}
	receivable, err := r.account(ctx, w.Scope, accounts.RoleReceivable)
	if err != nil {
		return accounting.Batch{}, err
	}
	seq := w.Sequence
	if seq == 0 {
		seq = 1
	}
	purpose := fmt.Sprintf("bad_debt:%d", seq)
	document := accounting.DocumentLink{Type: accounting.DocumentBadDebt, ID: w.InvoiceID}
	existing, err := r.ledger.Batch(ctx, w.Scope, accounting.SourceBatchID(w.Scope.BusinessID, document, purpose))
	switch {
	case err == nil:
		r.logger.Info("integration: document already posted",
			slog.Int64("business_id", w.Scope.BusinessID),
			slog.String("document", string(document.Type)),
			slog.Int64("document_id", w.InvoiceID),
			slog.String("purpose", purpose))
		return existing, nil
	case !errors.Is(err, accounting.ErrBatchNotFound):
		return accounting.Batch{}, err
	}
	reference, err := r.reference(ctx, w.Scope, "BD", w.InvoiceID)
	if err != nil {
		return accounting.Batch{}, err
	}
	document.Reference = reference
	memo := "Bad debt write-off " + w.InvoiceNumber
	if w.Reason != "" {
		memo += ": " + w.Reason
	}
	amount := round2(w.Amount)
	return r.post(ctx, purpose, accounting.PostingInput{
		Scope:     w.Scope,
		Date:      w.Date,
		Document:  document,
		Reference: reference,
		Memo:      memo,
		PostedBy:  w.ActorID,
		Lines: []accounting.PostingLine{
			accounting.Dr(expense, amount, memo),
			accounting.Cr(receivable, amount, memo),
		},
	})
}

// reference draws a document number, falling back to the document id when no
// sequencer is attached.
func (r *Rules) reference(ctx context.Context, scope shared.Scope, prefix string, id int64) (string, error) {
	if r.sequencer == nil {
		return FormatNumber(prefix, id), nil
	}
	return r.sequencer.Next(ctx, scope.BusinessID, prefix)
}

// PostDepreciation books one month of depreciation for an asset.
func (r *Rules) PostDepreciation(ctx context.Context, c DepreciationCharge) (accounting.Batch, error) {
	if !c.Amount.IsPositive() {
		return accounting.Batch{}, invalid("depreciation of %s amount must be positive", c.AssetCode)
	}
	expense, err := r.account(ctx, c.Scope, accounts.RoleDepreciationExpense)
	if err != nil {
		return accounting.Batch{}, err
	}
	accumulated, err := r.account(ctx, c.Scope, accounts.RoleAccumulatedDepreciation)
	if err != nil {
		return accounting.Batch{}, err
	}
	period := c.Date.Format("2006-01")
	reference := fmt.Sprintf("DEP-%s-%s", c.AssetCode, period)
	amount := round2(c.Amount)
	return r.post(ctx, "depreciation:"+period, accounting.PostingInput{
		Scope:     c.Scope,
		Date:      c.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentDepreciation, ID: c.AssetID, Reference: reference},
		Reference: reference,
		Memo:      "Depreciation " + c.AssetCode + " " + period,
		PostedBy:  c.ActorID,
		Lines: []accounting.PostingLine{
			accounting.Dr(expense, amount, reference),
			accounting.Cr(accumulated, amount, reference),
		},
	})
}

// PostAssetDisposal removes an asset at cost, clears its accumulated
// depreciation and books proceeds. The difference to book value is a gain or
// a loss. Disposal without proceeds is a write-off.
func (r *Rules) PostAssetDisposal(ctx context.Context, d AssetDisposal) (accounting.Batch, error) {
	if !d.Cost.IsPositive() || d.AccumulatedDepreciation.IsNegative() || d.Proceeds.IsNegative() {
		return accounting.Batch{}, invalid("disposal of %s has invalid amounts", d.AssetCode)
	}
	if d.AccumulatedDepreciation.GreaterThan(d.Cost) {
		return accounting.Batch{}, invalid("disposal of %s: depreciation exceeds cost", d.AssetCode)
	}
	asset := d.AssetAccountID
	if asset == 0 {
		id, err := r.account(ctx, d.Scope, accounts.RoleFixedAssets)
		if err != nil {
			return accounting.Batch{}, err
		}
		asset = id
	}
	accumulated, err := r.account(ctx, d.Scope, accounts.RoleAccumulatedDepreciation)
	if err != nil {
		return accounting.Batch{}, err
	}
	cost, depreciation, proceeds := round2(d.Cost), round2(d.AccumulatedDepreciation), round2(d.Proceeds)
	writeOff := proceeds.IsZero()
	prefix, purpose := "DSP", "disposal"
	if writeOff {
		prefix, purpose = "WO", "write_off"
	}
	reference := fmt.Sprintf("%s-%s", prefix, d.AssetCode)
	lines := []accounting.PostingLine{
		accounting.Dr(accumulated, depreciation, "Clear depreciation "+d.AssetCode),
		accounting.Cr(asset, cost, "Remove asset "+d.AssetCode),
	}
	if !writeOff {
		money, err := r.channelAccount(ctx, d.Scope, ChannelCash, d.ProceedsAccountID)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines, accounting.Dr(money, proceeds, "Proceeds "+d.AssetCode))
	}
	result := proceeds.Sub(cost.Sub(depreciation))
	switch {
	case result.IsPositive():
		gain, err := r.account(ctx, d.Scope, accounts.RoleGainOnDisposal)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines, accounting.Cr(gain, result, "Gain on disposal "+d.AssetCode))
	case result.IsNegative():
		loss, err := r.account(ctx, d.Scope, accounts.RoleLossOnDisposal)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines, accounting.Dr(loss, result.Neg(), "Loss on disposal "+d.AssetCode))
	}
	return r.post(ctx, purpose, accounting.PostingInput{
		Scope:     d.Scope,
		Date:      d.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentAssetDisposal, ID: d.AssetID, Reference: reference},
		Reference: reference,
		Memo:      "Asset disposal " + d.AssetCode,
		PostedBy:  d.ActorID,
		Lines:     lines,
	})
}

// PostPayroll books gross salaries against withholdings, net pay and the
// remaining payroll liability. The paying account may not go negative.
func (r *Rules) PostPayroll(ctx context.Context, run PayrollRun) (accounting.Batch, error) {
	gross, paye, pension, net := round2(run.Gross), round2(run.PAYE), round2(run.Pension), round2(run.Net)
	if !gross.IsPositive() || paye.IsNegative() || pension.IsNegative() || net.IsNegative() {
		return accounting.Batch{}, invalid("payroll %s has invalid amounts", run.Reference)
	}
	accrued := gross.Sub(paye).Sub(pension).Sub(net)
	if accrued.IsNegative() {
		return accounting.Batch{}, invalid("payroll %s deductions exceed gross", run.Reference)
	}
	salary, err := r.account(ctx, run.Scope, accounts.RoleSalaryExpense)
	if err != nil {
		return accounting.Batch{}, err
	}
	lines := []accounting.PostingLine{accounting.Dr(salary, gross, "Gross pay "+run.Reference)}
	credit := func(role accounts.Role, amount decimal.Decimal, label string) error {
		if !amount.IsPositive() {
			return nil
		}
		id, err := r.account(ctx, run.Scope, role)
		if err != nil {
			return err
		}
		lines = append(lines, accounting.Cr(id, amount, label+" "+run.Reference))
		return nil
	}
	if err := credit(accounts.RolePAYEPayable, paye, "PAYE"); err != nil {
		return accounting.Batch{}, err
	}
	if err := credit(accounts.RolePensionPayable, pension, "Pension"); err != nil {
		return accounting.Batch{}, err
	}
	if err := credit(accounts.RolePayrollPayable, accrued, "Salaries payable"); err != nil {
		return accounting.Batch{}, err
	}
	var guards []int64
	if net.IsPositive() {
		money, err := r.channelAccount(ctx, run.Scope, run.Channel, 0)
		if err != nil {
			return accounting.Batch{}, err
		}
		lines = append(lines, accounting.Cr(money, net, "Net pay "+run.Reference))
		guards = append(guards, money)
	}
	return r.post(ctx, "payroll", accounting.PostingInput{
		Scope:     run.Scope,
		Date:      run.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentPayroll, ID: run.ID, Reference: run.Reference},
		Reference: run.Reference,
		Memo:      "Payroll " + run.Reference,
		PostedBy:  run.ActorID,
		Lines:     lines,
		Guards:    guards,
	})
}

// PostOpeningBalance sets an account's starting balance against opening
// balance equity. A negative amount sits on the account's contra side.
func (r *Rules) PostOpeningBalance(ctx context.Context, ob OpeningBalance) (accounting.Batch, error) {
	amount := round2(ob.Amount)
	if amount.IsZero() {
		return accounting.Batch{}, invalid("opening balance of account %d is zero", ob.AccountID)
	}
	acc, err := r.accounts.Get(ctx, ob.Scope.BusinessID, ob.AccountID)
	if err != nil {
		return accounting.Batch{}, err
	}
	equity, err := r.account(ctx, ob.Scope, accounts.RoleOpeningBalanceEquity, accounts.RoleRetainedEarnings)
	if err != nil {
		return accounting.Batch{}, err
	}
	if equity == acc.ID {
		return accounting.Batch{}, invalid("opening balance cannot target the equity offset account %s", acc.Code)
	}
	// debit-normal accounts take a positive amount as a debit
	signed := amount
	if !acc.Type.DebitNormal() {
		signed = amount.Neg()
	}
	label := "Opening balance " + acc.Code
	return r.post(ctx, "opening_balance", accounting.PostingInput{
		Scope:     ob.Scope,
		Date:      ob.Date,
		Document:  accounting.DocumentLink{Type: accounting.DocumentOpeningBalance, ID: acc.ID, Reference: "OB-" + acc.Code},
		Reference: "OB-" + acc.Code,
		Memo:      label,
		PostedBy:  ob.ActorID,
		Lines: []accounting.PostingLine{
			accounting.Dr(acc.ID, signed, label),
			accounting.Cr(equity, signed, label),
		},
	})
}

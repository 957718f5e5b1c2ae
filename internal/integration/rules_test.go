package integration_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	cash int64 = iota + 1
	bank
	receivable
	stock
	vatReceivable
	fixedAssets
	accumulated
	payable
	vatPayable
	salariesPayable
	payePayable
	pensionPayable
	openingEquity
	retained
	sales
	otherIncome
	cogs
	salaries
	depreciation
	badDebt
	lossOnDisposal
	operating
)

var (
	scope = shared.NewScope(1, 0)
	jan   = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type quotes map[int64]decimal.Decimal

func (q quotes) QuoteSale(_ context.Context, _ shared.Scope, productID int64, qty decimal.Decimal, _ inventory.Method, _ time.Time) (inventory.SaleCost, error) {
	unit, ok := q[productID]
	if !ok {
		return inventory.SaleCost{}, inventory.ErrProductNotFound
	}
	return inventory.SaleCost{Quantity: qty, Cost: qty.Mul(unit), UnitCost: unit}, nil
}

// stockBook prices sales against a replayed FIFO history.
type stockBook struct{ history inventory.History }

func (b *stockBook) QuoteSale(_ context.Context, _ shared.Scope, productID int64, qty decimal.Decimal, _ inventory.Method, _ time.Time) (inventory.SaleCost, error) {
	var h inventory.History
	for _, p := range b.history.Purchases {
		if p.ProductID == productID {
			h.Purchases = append(h.Purchases, p)
		}
	}
	for _, s := range b.history.Sales {
		if s.ProductID == productID {
			h.Sales = append(h.Sales, s)
		}
	}
	if len(h.Purchases) == 0 {
		return inventory.SaleCost{}, inventory.ErrProductNotFound
	}
	return inventory.ReplayFIFO(h).Cost(qty), nil
}

func (b *stockBook) buy(id, productID int64, qty, unit string) {
	b.history.Purchases = append(b.history.Purchases, inventory.PurchaseLine{
		ID: id, BusinessID: 1, ProductID: productID, Date: jan, Quantity: d(qty), Returned: decimal.Zero, UnitCost: d(unit),
	})
}

func (b *stockBook) sell(id, productID int64, qty string) {
	b.history.Sales = append(b.history.Sales, inventory.SaleLine{
		ID: id, BusinessID: 1, ProductID: productID, Date: jan, Quantity: d(qty), Returned: decimal.Zero,
	})
}

type counter struct{ n int64 }

func (c *counter) Next(_ context.Context, _ int64, prefix string) (string, error) {
	c.n++
	return integration.FormatNumber(prefix, c.n), nil
}

type fixture struct {
	store   *ledgertest.Memory
	rules   *integration.Rules
	reports *reports.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := ledgertest.NewMemory()
	chart := []struct {
		id   int64
		code string
		name string
		typ  accounting.AccountType
	}{
		{cash, "1000", "Cash", accounting.AccountTypeAsset},
		{bank, "1100", "Bank", accounting.AccountTypeAsset},
		{receivable, "1200", "Accounts Receivable", accounting.AccountTypeAsset},
		{stock, "1300", "Inventory", accounting.AccountTypeAsset},
		{vatReceivable, "1400", "VAT Receivable", accounting.AccountTypeAsset},
		{fixedAssets, "1500", "Fixed Assets", accounting.AccountTypeAsset},
		{accumulated, "1590", "Accumulated Depreciation", accounting.AccountTypeAsset},
		{payable, "2000", "Accounts Payable", accounting.AccountTypeLiability},
		{vatPayable, "2100", "VAT Payable", accounting.AccountTypeLiability},
		{salariesPayable, "2200", "Salaries Payable", accounting.AccountTypeLiability},
		{payePayable, "2300", "PAYE Payable", accounting.AccountTypeLiability},
		{pensionPayable, "2400", "Pension Payable", accounting.AccountTypeLiability},
		{openingEquity, "3000", "Opening Balance Equity", accounting.AccountTypeEquity},
		{retained, "3200", "Retained Earnings", accounting.AccountTypeEquity},
		{sales, "4000", "Sales Revenue", accounting.AccountTypeRevenue},
		{otherIncome, "4900", "Other Income", accounting.AccountTypeRevenue},
		{cogs, "5000", "Cost of Goods Sold", accounting.AccountTypeExpense},
		{salaries, "6000", "Salaries Expense", accounting.AccountTypeExpense},
		{depreciation, "6100", "Depreciation Expense", accounting.AccountTypeExpense},
		{badDebt, "6200", "Bad Debt Expense", accounting.AccountTypeExpense},
		{lossOnDisposal, "6300", "Loss on Disposal", accounting.AccountTypeExpense},
		{operating, "6900", "Operating Expenses", accounting.AccountTypeExpense},
	}
	for _, acc := range chart {
		store.AddAccount(accounting.Account{ID: acc.id, BusinessID: 1, Code: acc.code, Name: acc.name, Type: acc.typ, IsActive: true})
	}
	ledger := accounting.NewService(store, nil, nil)
	rpt := reports.NewService(store)
	rpt.WithNow(func() time.Time { return time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC) })
	rules := integration.NewRules(ledger, accounts.NewPatternResolver(store), store, nil).
		WithValuation(quotes{10: d("2.6")}, inventory.MethodFIFO).
		WithSequencer(&counter{}).
		WithStatements(rpt)
	return fixture{store: store, rules: rules, reports: rpt}
}

// balance returns debit minus credit for an account.
func (f fixture) balance(id int64) decimal.Decimal {
	total := decimal.Zero
	for _, e := range f.store.Entries() {
		if e.AccountID == id {
			total = total.Add(e.Debit).Sub(e.Credit)
		}
	}
	return total
}

func (f fixture) fund(t *testing.T, id int64, amount string) {
	t.Helper()
	_, err := f.rules.PostOpeningBalance(context.Background(), integration.OpeningBalance{Scope: scope, AccountID: id, Date: jan, Amount: d(amount)})
	require.NoError(t, err)
}

func assertBalanced(t *testing.T, batch accounting.Batch) {
	t.Helper()
	assert.True(t, batch.TotalDebit.Equal(batch.TotalCredit), "debit %s credit %s", batch.TotalDebit, batch.TotalCredit)
}

func TestPostSaleWithCostOfGoods(t *testing.T) {
	f := newFixture(t)
	inv := integration.SaleInvoice{
		Scope: scope, ID: 7, Number: "INV-7", Date: jan,
		Subtotal: d("100"), VAT: d("15"),
		Items: []integration.SaleItem{
			{ProductID: 10, Quantity: d("10"), Stocked: true},
			{ProductID: 99, Quantity: d("1")},
		},
	}
	batch, err := f.rules.PostSale(context.Background(), inv)
	require.NoError(t, err)
	assertBalanced(t, batch)
	require.Len(t, batch.Entries, 5)
	assert.True(t, f.balance(receivable).Equal(d("115")))
	assert.True(t, f.balance(sales).Equal(d("-100")))
	assert.True(t, f.balance(vatPayable).Equal(d("-15")))
	assert.True(t, f.balance(cogs).Equal(d("26")))
	assert.True(t, f.balance(stock).Equal(d("-26")))

	again, err := f.rules.PostSale(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, again.ID)
	assert.Len(t, f.store.Entries(), 5)
}

func TestPostSaleRequiresValuationForStockedLines(t *testing.T) {
	f := newFixture(t)
	_, err := f.rules.PostSale(context.Background(), integration.SaleInvoice{
		Scope: scope, ID: 8, Number: "INV-8", Date: jan, Subtotal: d("10"),
		Items: []integration.SaleItem{{ProductID: 404, Quantity: d("1"), Stocked: true}},
	})
	require.ErrorIs(t, err, inventory.ErrProductNotFound)
	assert.Empty(t, f.store.Entries())
}

func TestPostSaleWithoutVATAccount(t *testing.T) {
	f := newFixture(t)
	f.store.SetActive(vatPayable, false)
	_, err := f.rules.PostSale(context.Background(), integration.SaleInvoice{Scope: scope, ID: 9, Number: "INV-9", Date: jan, Subtotal: d("10"), VAT: d("1.5")})
	require.ErrorIs(t, err, integration.ErrAccountNotMapped)
	var missing *integration.MissingAccountError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, accounts.RoleVATPayable.Key, missing.Role)

	// no VAT, no VAT account needed
	_, err = f.rules.PostSale(context.Background(), integration.SaleInvoice{Scope: scope, ID: 10, Number: "INV-10", Date: jan, Subtotal: d("10")})
	require.NoError(t, err)
}

func TestPostPurchaseAndDebitNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch, err := f.rules.PostPurchase(ctx, integration.PurchaseBill{Scope: scope, ID: 1, Number: "PB-1", Date: jan, Subtotal: d("200"), VAT: d("30")})
	require.NoError(t, err)
	assertBalanced(t, batch)
	assert.True(t, f.balance(stock).Equal(d("200")))
	assert.True(t, f.balance(vatReceivable).Equal(d("30")))
	assert.True(t, f.balance(payable).Equal(d("-230")))

	_, err = f.rules.PostDebitNote(ctx, integration.DebitNote{Scope: scope, ID: 1, Number: "DN-1", Date: jan, Subtotal: d("20"), VAT: d("3")})
	require.NoError(t, err)
	assert.True(t, f.balance(stock).Equal(d("180")))
	assert.True(t, f.balance(vatReceivable).Equal(d("27")))
	assert.True(t, f.balance(payable).Equal(d("-207")))
}

func TestPostCreditNoteRestoresCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.rules.PostSale(ctx, integration.SaleInvoice{
		Scope: scope, ID: 1, Number: "INV-1", Date: jan, Subtotal: d("100"), VAT: d("15"),
		Items: []integration.SaleItem{{ProductID: 10, Quantity: d("10"), Stocked: true}},
	})
	require.NoError(t, err)

	batch, err := f.rules.PostCreditNote(ctx, integration.CreditNote{
		Scope: scope, ID: 1, Number: "CN-1", Date: jan, Subtotal: d("20"), VAT: d("3"),
		Items: []integration.ReturnedItem{{ProductID: 10, Cost: d("5.2")}},
	})
	require.NoError(t, err)
	assertBalanced(t, batch)
	assert.True(t, f.balance(receivable).Equal(d("92")))
	assert.True(t, f.balance(sales).Equal(d("-80")))
	assert.True(t, f.balance(vatPayable).Equal(d("-12")))
	assert.True(t, f.balance(cogs).Equal(d("20.8")))
	assert.True(t, f.balance(stock).Equal(d("-20.8")))
}

func TestPaymentsUseChannelAndGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rules.PostPaymentMade(ctx, integration.Payment{Scope: scope, ID: 1, Number: "PAY-1", Date: jan, Amount: d("50")})
	require.ErrorIs(t, err, accounting.ErrInsufficientBalance)
	assert.Empty(t, f.store.Entries())

	_, err = f.rules.PostPaymentReceived(ctx, integration.Payment{Scope: scope, ID: 2, Number: "RCV-1", Date: jan, Amount: d("115"), Channel: integration.ChannelBank})
	require.NoError(t, err)
	assert.True(t, f.balance(bank).Equal(d("115")))
	assert.True(t, f.balance(receivable).Equal(d("-115")))

	_, err = f.rules.PostPaymentMade(ctx, integration.Payment{Scope: scope, ID: 3, Number: "PAY-2", Date: jan, Amount: d("50"), Channel: integration.ChannelBank})
	require.NoError(t, err)
	assert.True(t, f.balance(bank).Equal(d("65")))
	assert.True(t, f.balance(payable).Equal(d("50")))

	_, err = f.rules.PostPaymentReceived(ctx, integration.Payment{Scope: scope, ID: 4, Number: "RCV-2", Date: jan, Amount: d("1"), AccountID: sales})
	require.ErrorIs(t, err, integration.ErrInvalidDocument)
	_, err = f.rules.PostPaymentReceived(ctx, integration.Payment{Scope: scope, ID: 5, Number: "RCV-3", Date: jan, Amount: decimal.Zero})
	require.ErrorIs(t, err, integration.ErrInvalidDocument)
}

func TestPostFundTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	transfer := integration.FundTransfer{Scope: scope, ID: 1, Reference: "FT-1", Date: jan, FromAccountID: cash, ToAccountID: bank, Amount: d("40")}

	_, err := f.rules.PostFundTransfer(ctx, transfer)
	require.ErrorIs(t, err, accounting.ErrInsufficientBalance)

	f.fund(t, cash, "100")
	_, err = f.rules.PostFundTransfer(ctx, transfer)
	require.NoError(t, err)
	assert.True(t, f.balance(cash).Equal(d("60")))
	assert.True(t, f.balance(bank).Equal(d("40")))

	same := transfer
	same.ID, same.ToAccountID = 2, cash
	_, err = f.rules.PostFundTransfer(ctx, same)
	require.ErrorIs(t, err, integration.ErrInvalidDocument)

	toEquity := transfer
	toEquity.ID, toEquity.ToAccountID = 3, retained
	_, err = f.rules.PostFundTransfer(ctx, toEquity)
	require.ErrorIs(t, err, integration.ErrInvalidDocument)

	_, err = f.rules.PostFundTransfer(ctx, integration.FundTransfer{Scope: scope, ID: 4, Date: jan, FromAccountID: cash, ToAccountID: 999, Amount: d("1")})
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func TestPostBadDebtFallsBackThroughExpenseNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	batch, err := f.rules.PostBadDebt(ctx, integration.BadDebtWriteOff{Scope: scope, InvoiceID: 3, InvoiceNumber: "INV-3", Date: jan, Amount: d("12.5"), Reason: "customer insolvent"})
	require.NoError(t, err)
	assert.Equal(t, "BD-00001", batch.Document.Reference)
	assert.True(t, f.balance(badDebt).Equal(d("12.5")))
	assert.True(t, f.balance(receivable).Equal(d("-12.5")))

	f.store.SetActive(badDebt, false)
	_, err = f.rules.PostBadDebt(ctx, integration.BadDebtWriteOff{Scope: scope, InvoiceID: 4, InvoiceNumber: "INV-4", Date: jan, Amount: d("5")})
	require.NoError(t, err)
	assert.True(t, f.balance(operating).Equal(d("5")))
}

func TestDepreciationCalculators(t *testing.T) {
	assert.True(t, integration.StraightLine(d("1000"), d("100"), 3, decimal.Zero).Equal(d("300")))
	assert.True(t, integration.StraightLine(d("1000"), d("100"), 3, d("800")).Equal(d("100")))
	assert.True(t, integration.StraightLine(d("1000"), d("100"), 3, d("900")).IsZero())
	assert.True(t, integration.StraightLine(d("1000"), d("100"), 0, decimal.Zero).IsZero())

	assert.True(t, integration.DecliningBalance(d("1000"), d("100"), decimal.Zero).Equal(d("200")))
	assert.True(t, integration.DecliningBalance(d("1000"), d("100"), d("40")).Equal(d("400")))
	assert.True(t, integration.DecliningBalance(d("120"), d("100"), d("20")).Equal(d("20")))
	assert.True(t, integration.DecliningBalance(d("100"), d("100"), d("20")).IsZero())

	assert.True(t, integration.Monthly(d("1200")).Equal(d("100")))
}

func TestPostDepreciationOncePerMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	charge := integration.DepreciationCharge{Scope: scope, AssetID: 5, AssetCode: "FA-5", Date: jan, Amount: d("25")}
	_, err := f.rules.PostDepreciation(ctx, charge)
	require.NoError(t, err)
	_, err = f.rules.PostDepreciation(ctx, charge)
	require.NoError(t, err)
	charge.Date = jan.AddDate(0, 1, 0)
	_, err = f.rules.PostDepreciation(ctx, charge)
	require.NoError(t, err)

	assert.True(t, f.balance(depreciation).Equal(d("50")))
	assert.True(t, f.balance(accumulated).Equal(d("-50")))
}

func TestPostAssetDisposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sold, err := f.rules.PostAssetDisposal(ctx, integration.AssetDisposal{
		Scope: scope, AssetID: 1, AssetCode: "FA-1", Date: jan,
		Cost: d("1000"), AccumulatedDepreciation: d("600"), Proceeds: d("500"),
	})
	require.NoError(t, err)
	assertBalanced(t, sold)
	assert.True(t, f.balance(cash).Equal(d("500")))
	assert.True(t, f.balance(otherIncome).Equal(d("-100")))
	assert.True(t, f.balance(fixedAssets).Equal(d("-1000")))
	assert.True(t, f.balance(accumulated).Equal(d("600")))

	scrapped, err := f.rules.PostAssetDisposal(ctx, integration.AssetDisposal{
		Scope: scope, AssetID: 2, AssetCode: "FA-2", Date: jan,
		Cost: d("800"), AccumulatedDepreciation: d("300"),
	})
	require.NoError(t, err)
	assert.Equal(t, "WO-FA-2", scrapped.Document.Reference)
	assert.True(t, f.balance(lossOnDisposal).Equal(d("500")))

	_, err = f.rules.PostAssetDisposal(ctx, integration.AssetDisposal{Scope: scope, AssetID: 3, AssetCode: "FA-3", Date: jan, Cost: d("10"), AccumulatedDepreciation: d("11")})
	require.ErrorIs(t, err, integration.ErrInvalidDocument)
}

func TestPostPayroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := integration.PayrollRun{Scope: scope, ID: 1, Reference: "PR-2024-01", Date: jan, Gross: d("1000"), PAYE: d("100"), Pension: d("50"), Net: d("800")}

	_, err := f.rules.PostPayroll(ctx, run)
	require.ErrorIs(t, err, accounting.ErrInsufficientBalance)

	f.fund(t, cash, "5000")
	batch, err := f.rules.PostPayroll(ctx, run)
	require.NoError(t, err)
	assertBalanced(t, batch)
	assert.True(t, f.balance(salaries).Equal(d("1000")))
	assert.True(t, f.balance(payePayable).Equal(d("-100")))
	assert.True(t, f.balance(pensionPayable).Equal(d("-50")))
	assert.True(t, f.balance(salariesPayable).Equal(d("-50")))
	assert.True(t, f.balance(cash).Equal(d("4200")))

	run.ID, run.Net = 2, d("900")
	_, err = f.rules.PostPayroll(ctx, run)
	require.ErrorIs(t, err, integration.ErrInvalidDocument)
}

func TestPostOpeningBalanceFollowsNormalSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, cash, "5000")
	f.fund(t, payable, "300")
	assert.True(t, f.balance(cash).Equal(d("5000")))
	assert.True(t, f.balance(payable).Equal(d("-300")))
	assert.True(t, f.balance(openingEquity).Equal(d("-4700")))

	_, err := f.rules.PostOpeningBalance(ctx, integration.OpeningBalance{Scope: scope, AccountID: bank, Date: jan, Amount: d("-20")})
	require.NoError(t, err)
	assert.True(t, f.balance(bank).Equal(d("-20")))

	// without an opening balance equity account retained earnings takes the offset
	f.store.SetActive(openingEquity, false)
	_, err = f.rules.PostOpeningBalance(ctx, integration.OpeningBalance{Scope: scope, AccountID: stock, Date: jan, Amount: d("70")})
	require.NoError(t, err)
	assert.True(t, f.balance(retained).Equal(d("-70")))

	_, err = f.rules.PostOpeningBalance(ctx, integration.OpeningBalance{Scope: scope, AccountID: stock, Date: jan, Amount: decimal.Zero})
	require.ErrorIs(t, err, integration.ErrInvalidDocument)
}

func TestPostYearEndClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, cash, "1000")
	_, err := f.rules.PostSale(ctx, integration.SaleInvoice{
		Scope: scope, ID: 1, Number: "INV-1", Date: jan, Subtotal: d("300"),
		Items: []integration.SaleItem{{ProductID: 10, Quantity: d("10"), Stocked: true}},
	})
	require.NoError(t, err)
	_, err = f.rules.PostDepreciation(ctx, integration.DepreciationCharge{Scope: scope, AssetID: 1, AssetCode: "FA-1", Date: jan, Amount: d("24")})
	require.NoError(t, err)

	year := integration.YearEndClose{
		Scope: scope, FiscalYearID: 2024,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	before, err := f.reports.IncomeStatement(ctx, scope, year.Start, year.End)
	require.NoError(t, err)
	require.True(t, before.NetIncome.Equal(d("250")), before.NetIncome.String())

	batch, posted, err := f.rules.PostYearEndClose(ctx, year)
	require.NoError(t, err)
	require.True(t, posted)
	assertBalanced(t, batch)
	assert.Equal(t, fmt.Sprintf("CLOSE-%d", 2024), batch.Document.Reference)
	assert.True(t, f.balance(retained).Equal(d("-250")))
	for _, id := range []int64{sales, cogs, depreciation} {
		assert.True(t, f.balance(id).IsZero(), "account %d", id)
	}

	after, err := f.reports.IncomeStatement(ctx, scope, year.Start, year.End)
	require.NoError(t, err)
	assert.Empty(t, after.Revenue)
	assert.Empty(t, after.Expenses)

	_, posted, err = f.rules.PostYearEndClose(ctx, year)
	require.NoError(t, err)
	assert.False(t, posted)

	tb, err := f.reports.TrialBalance(ctx, scope, year.End)
	require.NoError(t, err)
	assert.True(t, tb.IsBalanced)
}

func TestPostSaleCostsRepeatedProductLinesAsOneDraw(t *testing.T) {
	f := newFixture(t)
	book := &stockBook{}
	book.buy(1, 10, "10", "2")
	book.buy(2, 10, "5", "3")
	book.buy(3, 20, "4", "1.5")
	f.rules.WithValuation(book, inventory.MethodFIFO)
	ctx := context.Background()

	quoted, err := book.QuoteSale(ctx, scope, 10, d("12"), inventory.MethodFIFO, jan)
	require.NoError(t, err)
	require.True(t, quoted.Cost.Equal(d("26")))

	batch, err := f.rules.PostSale(ctx, integration.SaleInvoice{
		Scope: scope, ID: 30, Number: "INV-30", Date: jan, Subtotal: d("200"),
		Items: []integration.SaleItem{
			{ProductID: 10, Quantity: d("6"), Stocked: true},
			{ProductID: 20, Quantity: d("2"), Stocked: true},
			{ProductID: 10, Quantity: d("6"), Stocked: true},
		},
	})
	require.NoError(t, err)
	assertBalanced(t, batch)
	assert.True(t, f.balance(cogs).Equal(d("29")), "cogs %s", f.balance(cogs))

	// recording the same lines and replaying gives the posted cost
	book.sell(1, 10, "6")
	book.sell(2, 20, "2")
	book.sell(3, 10, "6")
	replayed := decimal.Zero
	for _, productID := range []int64{10, 20} {
		var h inventory.History
		for _, p := range book.history.Purchases {
			if p.ProductID == productID {
				h.Purchases = append(h.Purchases, p)
			}
		}
		for _, s := range book.history.Sales {
			if s.ProductID == productID {
				h.Sales = append(h.Sales, s)
			}
		}
		for _, sale := range inventory.ReplayFIFO(h).Sales {
			replayed = replayed.Add(sale.Cost)
		}
	}
	assert.True(t, replayed.Equal(f.balance(cogs)), "replayed %s posted %s", replayed, f.balance(cogs))
}

func TestPostBadDebtAllowsSecondPartialWriteOff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := integration.BadDebtWriteOff{Scope: scope, InvoiceID: 5, InvoiceNumber: "INV-5", Date: jan, Amount: d("40")}
	batch, err := f.rules.PostBadDebt(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "BD-00001", batch.Document.Reference)

	// a redelivery returns the posted batch without drawing a number
	again, err := f.rules.PostBadDebt(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, again.ID)
	assert.Equal(t, "BD-00001", again.Document.Reference)

	second := first
	second.Sequence, second.Amount = 2, d("25")
	next, err := f.rules.PostBadDebt(ctx, second)
	require.NoError(t, err)
	assert.NotEqual(t, batch.ID, next.ID)
	assert.Equal(t, "BD-00002", next.Document.Reference)
	assert.True(t, f.balance(badDebt).Equal(d("65")))
	assert.True(t, f.balance(receivable).Equal(d("-65")))

	// sequence zero and one name the same write-off
	explicit := first
	explicit.Sequence = 1
	same, err := f.rules.PostBadDebt(ctx, explicit)
	require.NoError(t, err)
	assert.Equal(t, batch.ID, same.ID)

	negative := first
	negative.Sequence = -1
	_, err = f.rules.PostBadDebt(ctx, negative)
	require.ErrorIs(t, err, integration.ErrInvalidDocument)
	assert.True(t, f.balance(badDebt).Equal(d("65")))
}

package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// IncomeStatementLine is one revenue or expense account movement.
type IncomeStatementLine struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// IncomeStatement is profit and loss for a date window.
type IncomeStatement struct {
	Start         time.Time             `json:"start"`
	End           time.Time             `json:"end"`
	Revenue       []IncomeStatementLine `json:"revenue"`
	Expenses      []IncomeStatementLine `json:"expenses"`
	TotalRevenue  decimal.Decimal       `json:"total_revenue"`
	TotalExpenses decimal.Decimal       `json:"total_expenses"`
	NetIncome     decimal.Decimal       `json:"net_income"`
}

// BuildIncomeStatement buckets in-window movements of revenue and expense
// accounts. Revenue is credit minus debit and expense is debit minus credit,
// so a positive amount always means more of that kind. Zero movements are omitted.
func BuildIncomeStatement(start, end time.Time, accounts []AccountBalance) IncomeStatement {
	is := IncomeStatement{Start: start, End: end, TotalRevenue: decimal.Zero, TotalExpenses: decimal.Zero}
	for _, acc := range accounts {
		movement := acc.Debit.Sub(acc.Credit)
		if movement.IsZero() {
			continue
		}
		line := IncomeStatementLine{AccountID: acc.AccountID, Code: acc.Code, Name: acc.Name}
		switch acc.Type {
		case accounting.AccountTypeRevenue:
			line.Amount = movement.Neg()
			is.Revenue = append(is.Revenue, line)
			is.TotalRevenue = is.TotalRevenue.Add(line.Amount)
		case accounting.AccountTypeExpense:
			line.Amount = movement
			is.Expenses = append(is.Expenses, line)
			is.TotalExpenses = is.TotalExpenses.Add(line.Amount)
		}
	}
	sort.Slice(is.Revenue, func(i, j int) bool { return is.Revenue[i].Code < is.Revenue[j].Code })
	sort.Slice(is.Expenses, func(i, j int) bool { return is.Expenses[i].Code < is.Expenses[j].Code })
	is.NetIncome = is.TotalRevenue.Sub(is.TotalExpenses)
	return is
}

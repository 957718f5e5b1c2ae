package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// TrialBalanceRow is one account with a nonzero balance.
type TrialBalanceRow struct {
	AccountID int64                  `json:"account_id"`
	Code      string                 `json:"code"`
	Name      string                 `json:"name"`
	Type      accounting.AccountType `json:"type"`
	Debit     decimal.Decimal        `json:"debit"`
	Credit    decimal.Decimal        `json:"credit"`
	Balance   decimal.Decimal        `json:"balance"`
	// Inactive marks a deactivated account that still carries a balance.
	Inactive bool `json:"inactive"`
}

// TrialBalanceGroup aggregates rows sharing a code prefix.
type TrialBalanceGroup struct {
	Key    string            `json:"key"`
	Rows   []TrialBalanceRow `json:"rows"`
	Debit  decimal.Decimal   `json:"debit"`
	Credit decimal.Decimal   `json:"credit"`
}

// TrialBalance is the trial balance as of a date.
type TrialBalance struct {
	AsOf        time.Time           `json:"as_of"`
	Rows        []TrialBalanceRow   `json:"rows"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	IsBalanced  bool                `json:"is_balanced"`
}

// BuildTrialBalance converts lifetime-to-date balances into trial balance
// rows. Accounts whose net balance is zero are left out. Deactivated accounts
// with a balance stay in so the debit and credit totals still agree.
func BuildTrialBalance(asOf time.Time, accounts []AccountBalance) TrialBalance {
	result := TrialBalance{AsOf: asOf, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	groups := make(map[string]*TrialBalanceGroup)
	var keys []string
	for _, acc := range accounts {
		debit := acc.Opening.Add(acc.Debit)
		credit := acc.Credit
		if acc.Opening.IsNegative() {
			debit = acc.Debit
			credit = acc.Credit.Sub(acc.Opening)
		}
		balance := debit.Sub(credit)
		if balance.IsZero() {
			continue
		}
		row := TrialBalanceRow{
			AccountID: acc.AccountID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Debit:     debit,
			Credit:    credit,
			Balance:   balance,
			Inactive:  !acc.IsActive,
		}
		result.Rows = append(result.Rows, row)
		result.TotalDebit = result.TotalDebit.Add(debit)
		result.TotalCredit = result.TotalCredit.Add(credit)

		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Rows = append(grp.Rows, row)
		grp.Debit = grp.Debit.Add(debit)
		grp.Credit = grp.Credit.Add(credit)
	}
	sort.Slice(result.Rows, func(i, j int) bool { return result.Rows[i].Code < result.Rows[j].Code })
	sort.Strings(keys)
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Rows, func(i, j int) bool { return grp.Rows[i].Code < grp.Rows[j].Code })
		result.Groups = append(result.Groups, *grp)
	}
	result.IsBalanced = result.TotalDebit.Equal(result.TotalCredit)
	return result
}

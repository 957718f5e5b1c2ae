package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// BalanceSheetAccount summarises an account inside a bucket.
type BalanceSheetAccount struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalanceSheetBucket is one keyword-classified line.
type BalanceSheetBucket struct {
	Key      string                `json:"key"`
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheetSection contains the buckets and totals for a classification.
type BalanceSheetSection struct {
	Section Section              `json:"section"`
	Label   string               `json:"label"`
	Buckets []BalanceSheetBucket `json:"buckets"`
	Total   decimal.Decimal      `json:"total"`
}

// BalanceSheet is the statement of financial position. Amounts are signed
// by each account's normal side.
type BalanceSheet struct {
	AsOf                      time.Time           `json:"as_of"`
	NonCurrentAssets          BalanceSheetSection `json:"non_current_assets"`
	CurrentAssets             BalanceSheetSection `json:"current_assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	NetBookValue              decimal.Decimal     `json:"net_book_value"`
	CurrentEarnings           decimal.Decimal     `json:"current_earnings"`
	TotalAssets               decimal.Decimal     `json:"total_assets"`
	TotalLiabilities          decimal.Decimal     `json:"total_liabilities"`
	TotalEquity               decimal.Decimal     `json:"total_equity"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
	IsBalanced                bool                `json:"is_balanced"`
}

// BuildBalanceSheet classifies lifetime-to-date balances by account name and
// folds revenue minus expense into equity as current earnings.
func BuildBalanceSheet(asOf time.Time, accounts []AccountBalance) BalanceSheet {
	sections := map[Section]*BalanceSheetSection{
		SectionNonCurrentAssets: newSection(SectionNonCurrentAssets, "Non-Current Assets"),
		SectionCurrentAssets:    newSection(SectionCurrentAssets, "Current Assets"),
		SectionLiabilities:      newSection(SectionLiabilities, "Liabilities"),
		SectionEquity:           newSection(SectionEquity, "Equity"),
	}
	earnings := decimal.Zero
	for _, acc := range accounts {
		balance := acc.Natural()
		if balance.IsZero() {
			continue
		}
		switch acc.Type {
		case accounting.AccountTypeRevenue:
			earnings = earnings.Add(balance)
			continue
		case accounting.AccountTypeExpense:
			earnings = earnings.Sub(balance)
			continue
		}
		bucket, ok := Classify(acc.Name, acc.Type)
		if !ok {
			continue
		}
		section := sections[bucket.Section]
		for i := range section.Buckets {
			if section.Buckets[i].Key != bucket.Key {
				continue
			}
			section.Buckets[i].Accounts = append(section.Buckets[i].Accounts, BalanceSheetAccount{
				AccountID: acc.AccountID,
				Code:      acc.Code,
				Name:      acc.Name,
				Balance:   balance,
			})
			section.Buckets[i].Total = section.Buckets[i].Total.Add(balance)
			section.Total = section.Total.Add(balance)
		}
	}
	for _, section := range sections {
		for i := range section.Buckets {
			rows := section.Buckets[i].Accounts
			sort.Slice(rows, func(a, b int) bool { return rows[a].Code < rows[b].Code })
		}
	}

	equity := sections[SectionEquity]
	equity.Buckets = append(equity.Buckets, BalanceSheetBucket{Key: "current_earnings", Label: "Current Period Earnings", Total: earnings})
	equity.Total = equity.Total.Add(earnings)

	bs := BalanceSheet{
		AsOf:             asOf,
		NonCurrentAssets: *sections[SectionNonCurrentAssets],
		CurrentAssets:    *sections[SectionCurrentAssets],
		Liabilities:      *sections[SectionLiabilities],
		Equity:           *equity,
		CurrentEarnings:  earnings,
	}
	bs.NetBookValue = bucketTotal(bs.NonCurrentAssets, "fixed_assets").Add(bucketTotal(bs.NonCurrentAssets, "accumulated_depreciation"))
	bs.TotalAssets = bs.NonCurrentAssets.Total.Add(bs.CurrentAssets.Total)
	bs.TotalLiabilities = bs.Liabilities.Total
	bs.TotalEquity = bs.Equity.Total
	bs.TotalLiabilitiesAndEquity = bs.TotalLiabilities.Add(bs.TotalEquity)
	bs.IsBalanced = bs.TotalAssets.Equal(bs.TotalLiabilitiesAndEquity)
	return bs
}

func newSection(section Section, label string) *BalanceSheetSection {
	out := &BalanceSheetSection{Section: section, Label: label, Total: decimal.Zero}
	for _, b := range bucketOrder(section) {
		out.Buckets = append(out.Buckets, BalanceSheetBucket{Key: b.Key, Label: b.Label, Total: decimal.Zero})
	}
	return out
}

func bucketTotal(section BalanceSheetSection, key string) decimal.Decimal {
	for _, b := range section.Buckets {
		if b.Key == key {
			return b.Total
		}
	}
	return decimal.Zero
}

package reports

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// GeneralLedgerLine is one entry with the balance after applying it.
type GeneralLedgerLine struct {
	EntryID     int64                   `json:"entry_id"`
	BatchID     uuid.UUID               `json:"batch_id"`
	Date        string                  `json:"date"`
	Description string                  `json:"description"`
	Reference   string                  `json:"reference"`
	Document    accounting.DocumentLink `json:"document"`
	Debit       decimal.Decimal         `json:"debit"`
	Credit      decimal.Decimal         `json:"credit"`
	Balance     decimal.Decimal         `json:"balance"`
}

// GeneralLedgerAccount is the running ledger of one account.
type GeneralLedgerAccount struct {
	AccountID   int64                  `json:"account_id"`
	Code        string                 `json:"code"`
	Name        string                 `json:"name"`
	Type        accounting.AccountType `json:"type"`
	Opening     decimal.Decimal        `json:"opening"`
	TotalDebit  decimal.Decimal        `json:"total_debit"`
	TotalCredit decimal.Decimal        `json:"total_credit"`
	Closing     decimal.Decimal        `json:"closing"`
	Lines       []GeneralLedgerLine    `json:"lines"`
}

// GeneralLedger lists per-account running balances.
type GeneralLedger struct {
	Accounts []GeneralLedgerAccount `json:"accounts"`
}

// BuildGeneralLedger replays entries forward from each account's opening
// balance. Entries are ordered by date then id before the replay; balances
// are debit minus credit.
func BuildGeneralLedger(accounts []AccountBalance, entries []accounting.LedgerEntry) GeneralLedger {
	sorted := make([]accounting.LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	index := make(map[int64]int, len(accounts))
	out := GeneralLedger{Accounts: make([]GeneralLedgerAccount, 0, len(accounts))}
	for _, acc := range accounts {
		index[acc.AccountID] = len(out.Accounts)
		out.Accounts = append(out.Accounts, GeneralLedgerAccount{
			AccountID:   acc.AccountID,
			Code:        acc.Code,
			Name:        acc.Name,
			Type:        acc.Type,
			Opening:     acc.Opening,
			TotalDebit:  decimal.Zero,
			TotalCredit: decimal.Zero,
			Closing:     acc.Opening,
		})
	}
	for _, e := range sorted {
		pos, ok := index[e.AccountID]
		if !ok {
			continue
		}
		ledger := &out.Accounts[pos]
		ledger.Closing = ledger.Closing.Add(e.Debit).Sub(e.Credit)
		ledger.TotalDebit = ledger.TotalDebit.Add(e.Debit)
		ledger.TotalCredit = ledger.TotalCredit.Add(e.Credit)
		ledger.Lines = append(ledger.Lines, GeneralLedgerLine{
			EntryID:     e.ID,
			BatchID:     e.BatchID,
			Date:        e.Date.Format("2006-01-02"),
			Description: e.Description,
			Reference:   e.Reference,
			Document:    e.Document,
			Debit:       e.Debit,
			Credit:      e.Credit,
			Balance:     ledger.Closing,
		})
	}
	kept := out.Accounts[:0]
	for _, acc := range out.Accounts {
		if len(acc.Lines) > 0 || !acc.Opening.IsZero() {
			kept = append(kept, acc)
		}
	}
	out.Accounts = kept
	sort.Slice(out.Accounts, func(i, j int) bool { return out.Accounts[i].Code < out.Accounts[j].Code })
	return out
}

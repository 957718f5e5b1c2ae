package integration

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

// PostYearEndClose zeroes every revenue and expense movement of the fiscal
// year and carries the net income into retained earnings. A year without
// movements produces no batch.
func (r *Rules) PostYearEndClose(ctx context.Context, c YearEndClose) (accounting.Batch, bool, error) {
	if r.statements == nil {
		return accounting.Batch{}, false, invalid("closing requires a statement source")
	}
	if c.End.Before(c.Start) {
		return accounting.Batch{}, false, invalid("fiscal year %d ends before it starts", c.FiscalYearID)
	}
	is, err := r.statements.IncomeStatement(ctx, c.Scope, c.Start, c.End)
	if err != nil {
		return accounting.Batch{}, false, err
	}
	lines := closingLines(is)
	if len(lines) == 0 {
		return accounting.Batch{}, false, nil
	}
	retained, err := r.account(ctx, c.Scope, accounts.RoleRetainedEarnings)
	if err != nil {
		return accounting.Batch{}, false, err
	}
	label := fmt.Sprintf("Year-end close %s", c.End.Format("2006"))
	lines = append(lines, accounting.Cr(retained, is.NetIncome, label))
	reference := fmt.Sprintf("CLOSE-%d", c.FiscalYearID)
	batch, err := r.post(ctx, "year_end_close", accounting.PostingInput{
		Scope:     c.Scope,
		Date:      c.End,
		Document:  accounting.DocumentLink{Type: accounting.DocumentClosingEntry, ID: c.FiscalYearID, Reference: reference},
		Reference: reference,
		Memo:      label,
		PostedBy:  c.ActorID,
		Lines:     lines,
	})
	if err != nil {
		return accounting.Batch{}, false, err
	}
	return batch, true, nil
}

// closingLines offsets each statement line. Revenue amounts are credit
// balances so they close with a debit; expenses close with a credit. compact
// flips the side of contra movements.
func closingLines(is reports.IncomeStatement) []accounting.PostingLine {
	var lines []accounting.PostingLine
	for _, line := range is.Revenue {
		lines = append(lines, accounting.Dr(line.AccountID, line.Amount, "Close "+line.Code))
	}
	for _, line := range is.Expenses {
		lines = append(lines, accounting.Cr(line.AccountID, line.Amount, "Close "+line.Code))
	}
	return lines
}

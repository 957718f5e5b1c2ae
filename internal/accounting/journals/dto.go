package journals

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// CreateInput carries a new draft voucher.
type CreateInput struct {
	Scope       shared.Scope
	Date        time.Time
	Description string
	Reference   string
	Lines       []Line
	ActorID     int64
}

// posting converts voucher lines into a ledger posting request.
func posting(scope shared.Scope, v Voucher, actorID int64) accounting.PostingInput {
	lines := make([]accounting.PostingLine, 0, len(v.Lines))
	for _, line := range v.Lines {
		desc := line.Description
		if desc == "" {
			desc = v.Description
		}
		lines = append(lines, accounting.PostingLine{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: desc,
		})
	}
	doc := accounting.DocumentLink{Type: accounting.DocumentJournalVoucher, ID: v.ID, Reference: v.Number}
	return accounting.PostingInput{
		Scope:     scope,
		BatchID:   accounting.SourceBatchID(scope.BusinessID, doc, "post"),
		Date:      v.Date,
		Document:  doc,
		Reference: v.Reference,
		Memo:      v.Description,
		PostedBy:  actorID,
		Lines:     lines,
	}
}

// Validate applies the ledger's balance rules before anything is stored.
func (in CreateInput) Validate() error {
	v := Voucher{Date: in.Date, Description: in.Description, Lines: in.Lines}
	return posting(in.Scope, v, in.ActorID).Validate()
}

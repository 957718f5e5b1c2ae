package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EventPublisher delivers ledger events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// EventBatchPosted is the event type emitted after a batch commits.
const EventBatchPosted = "ledger.batch.posted"

// BatchPostedEvent summarises a committed batch.
type BatchPostedEvent struct {
	Type         string          `json:"type"`
	BatchID      string          `json:"batch_id"`
	BusinessID   int64           `json:"business_id"`
	BranchID     int64           `json:"branch_id,omitempty"`
	Date         string          `json:"date"`
	DocumentType DocumentType    `json:"document_type,omitempty"`
	DocumentID   int64           `json:"document_id,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	Total        decimal.Decimal `json:"total"`
	Lines        int             `json:"lines"`
	AccountIDs   []int64         `json:"account_ids"`
	PostedAt     time.Time       `json:"posted_at"`
}

// NewBatchPostedEvent builds the event for batch.
func NewBatchPostedEvent(batch Batch, reference string, at time.Time) BatchPostedEvent {
	seen := make(map[int64]struct{}, len(batch.Entries))
	ids := make([]int64, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		ids = append(ids, e.AccountID)
	}
	return BatchPostedEvent{
		Type:         EventBatchPosted,
		BatchID:      batch.ID.String(),
		BusinessID:   batch.Scope.BusinessID,
		BranchID:     batch.Scope.BranchID,
		Date:         batch.Date.Format("2006-01-02"),
		DocumentType: batch.Document.Type,
		DocumentID:   batch.Document.ID,
		Reference:    reference,
		Total:        batch.TotalDebit,
		Lines:        len(batch.Entries),
		AccountIDs:   ids,
		PostedAt:     at,
	}
}

// EventType names the event for transport headers.
func (e BatchPostedEvent) EventType() string {
	return e.Type
}

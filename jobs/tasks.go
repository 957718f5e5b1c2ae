package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity scans the ledger for invariant violations.
	TaskGLIntegrity = "ledger:gl_integrity"
	// TaskInventoryRevaluation values every active product per business.
	TaskInventoryRevaluation = "inventory:revaluation"
	// TaskLayerWarmup pre-fills the FIFO layer cache.
	TaskLayerWarmup = "inventory:layer_warmup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ScanPayload scopes a scan. A zero BusinessID means every business and a
// zero AsOf means the moment the task runs.
type ScanPayload struct {
	BusinessID   int64     `json:"business_id,omitempty"`
	AsOf         time.Time `json:"as_of,omitempty"`
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// NewScanTask constructs an Asynq task of taskType.
func NewScanTask(taskType string, payload ScanPayload, opts ...asynq.Option) (*asynq.Task, error) {
	switch taskType {
	case TaskGLIntegrity, TaskInventoryRevaluation, TaskLayerWarmup:
	default:
		return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)
	return asynq.NewTask(taskType, body, opts...), nil
}

// decodeScan reads a payload; malformed payloads are never retried.
func decodeScan(t *asynq.Task) (ScanPayload, error) {
	var payload ScanPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("jobs: decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

// businesses returns the requested business or all of them.
func businesses(payload ScanPayload, list func() ([]int64, error)) ([]int64, error) {
	if payload.BusinessID > 0 {
		return []int64{payload.BusinessID}, nil
	}
	return list()
}

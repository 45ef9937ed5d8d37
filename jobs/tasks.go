package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationRun posts the monthly depreciation charge of every active asset.
	TaskDepreciationRun = "assets:depreciation:run"
	// TaskIntegrityCheck replays the journal against stored balances.
	TaskIntegrityCheck = "ledger:integrity:check"
)

// taskNamespace seeds deterministic task ids.
var taskNamespace = uuid.MustParse("8f0c6a52-4d8e-4a57-9a43-7f1f3b7d5c21")

// DepreciationPayload selects what a depreciation run covers. Empty fields
// mean every institution and the last day of the previous month.
type DepreciationPayload struct {
	InstitutionID string `json:"institution_id,omitempty"`
	AsOf          string `json:"as_of,omitempty"`
	PeriodMonths  int    `json:"period_months,omitempty"`
}

// NewDepreciationTask constructs a depreciation task. Explicit runs get a
// task id derived from their scope so duplicate enqueues are rejected.
func NewDepreciationTask(payload DepreciationPayload) (*asynq.Task, []asynq.Option, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(5)}
	if payload.AsOf != "" {
		id := uuid.NewSHA1(taskNamespace, []byte(TaskDepreciationRun+"|"+payload.InstitutionID+"|"+payload.AsOf))
		opts = append(opts, asynq.TaskID(id.String()), asynq.Retention(24*time.Hour))
	}
	return asynq.NewTask(TaskDepreciationRun, data), opts, nil
}

// IntegrityPayload selects the institution to check; empty means all.
type IntegrityPayload struct {
	InstitutionID string `json:"institution_id,omitempty"`
}

// NewIntegrityTask constructs an integrity check task.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityCheck, data), nil
}

package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskEmailPoll scans the mailbox for unprocessed purchase
	// notifications and runs the extraction pipeline on each.
	TaskEmailPoll = "email:poll"
	// TaskMappingPrune enforces the mapping store population ceiling.
	TaskMappingPrune = "mapping:prune"
	// TaskLedgerIntegrity scans for drift between ledger deltas and
	// current stock. Report-only.
	TaskLedgerIntegrity = "ledger:integrity"
)

// EmailPollPayload bounds one polling pass.
type EmailPollPayload struct {
	MaxMessages int64 `json:"maxMessages"`
}

// NewEmailPollTask constructs an email polling task.
func NewEmailPollTask(payload EmailPollPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailPoll, data), nil
}

// NewMappingPruneTask constructs a mapping prune task.
func NewMappingPruneTask() *asynq.Task {
	return asynq.NewTask(TaskMappingPrune, nil)
}

// NewLedgerIntegrityTask constructs a ledger integrity scan task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

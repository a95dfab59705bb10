package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRefdataRefresh reloads the manufacturer filter options.
	TaskRefdataRefresh = "refdata:refresh"
)

// RefdataRefreshPayload describes why a refresh was requested.
type RefdataRefreshPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRefdataRefreshTask constructs an Asynq task. Refreshes are unique for a
// minute so a burst of triggers collapses into one run.
func NewRefdataRefreshTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "manual"
	}
	data, err := json.Marshal(RefdataRefreshPayload{Reason: reason, RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefdataRefresh, data, asynq.Unique(time.Minute), asynq.MaxRetry(3)), nil
}

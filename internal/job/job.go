// Package job defines the unit of work dispatched by the email engine.
package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority fixes a job's lane for the lifetime of the job.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Priorities lists the scan order used by the broker's dequeue: highest
// first, stopping at the first non-empty stream.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Status is the job-level state machine of spec §4.5.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSending    Status = "SENDING"
	StatusSent       Status = "SENT"
	StatusFailed     Status = "FAILED"
	StatusRetry      Status = "RETRY"
	StatusDeadLetter Status = "DEAD_LETTER"
)

// MaxRecipients bounds a single job's recipient list per the data model.
const MaxRecipients = 100

// Job is the unit of work flowing through the dispatch engine.
type Job struct {
	ID           string         `json:"job_id"`
	Recipients   []string       `json:"recipients"`
	TemplateName string         `json:"template_name"`
	TemplateData map[string]any `json:"template_data"`
	Priority     Priority       `json:"priority"`
	Provider     string         `json:"provider"`
	Status       Status         `json:"status"`
	RetryCount   int            `json:"retry_count"`
	CreatedAt    time.Time      `json:"created_at"`
	ScheduledAt  *time.Time     `json:"scheduled_at,omitempty"`
	LastError    string         `json:"last_error,omitempty"`

	// StreamID is broker-assigned on enqueue and used for ack; it is never
	// serialized into the job body since it belongs to whichever stream
	// entry currently holds the job, not to the job itself.
	StreamID string `json:"-"`
}

// New validates and constructs a job ready for intake.
func New(recipients []string, templateName string, data map[string]any, priority Priority, provider string) (*Job, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("job: recipients must be non-empty")
	}
	if len(recipients) > MaxRecipients {
		return nil, fmt.Errorf("job: recipients exceeds max of %d", MaxRecipients)
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("job: invalid priority %q", priority)
	}
	if provider == "" {
		return nil, fmt.Errorf("job: provider is required")
	}

	return &Job{
		ID:           uuid.NewString(),
		Recipients:   recipients,
		TemplateName: templateName,
		TemplateData: data,
		Priority:     priority,
		Provider:     provider,
		Status:       StatusPending,
		CreatedAt:    time.Now(),
	}, nil
}

// Marshal serializes the job body stored at the broker (stream entries,
// retry bodies, scheduled bodies, dead-letter snapshots all use this form).
func (j *Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// Unmarshal parses a job body previously produced by Marshal.
func Unmarshal(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("job: unmarshal: %w", err)
	}
	return &j, nil
}

package job_test

import (
	"strings"
	"testing"

	"emaildispatch/internal/job"
)

func TestNewValidatesRecipients(t *testing.T) {
	if _, err := job.New(nil, "welcome", nil, job.PriorityHigh, "sendgrid"); err == nil {
		t.Fatal("expected error for empty recipients")
	}

	tooMany := make([]string, job.MaxRecipients+1)
	for i := range tooMany {
		tooMany[i] = "user@example.com"
	}
	if _, err := job.New(tooMany, "welcome", nil, job.PriorityHigh, "sendgrid"); err == nil {
		t.Fatal("expected error for recipients over max")
	}
}

func TestNewValidatesPriorityAndProvider(t *testing.T) {
	recipients := []string{"user@example.com"}

	if _, err := job.New(recipients, "welcome", nil, job.Priority("URGENT"), "sendgrid"); err == nil {
		t.Fatal("expected error for invalid priority")
	}
	if _, err := job.New(recipients, "welcome", nil, job.PriorityHigh, ""); err == nil {
		t.Fatal("expected error for empty provider")
	}
}

func TestNewSetsDefaults(t *testing.T) {
	j, err := job.New([]string{"user@example.com"}, "welcome", nil, job.PriorityMedium, "mailgun")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != job.StatusPending {
		t.Errorf("expected PENDING status, got %v", j.Status)
	}
	if j.ID == "" {
		t.Error("expected a generated job id")
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	j, err := job.New([]string{"user@example.com"}, "welcome", map[string]any{"name": "Ada"}, job.PriorityLow, "smtp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	j.StreamID = "9999999999999-42"

	body, err := j.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(body), "9999999999999-42") {
		t.Error("expected StreamID to be excluded from the serialized body")
	}

	got, err := job.Unmarshal(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != j.ID || got.Provider != j.Provider {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, j)
	}
	if got.StreamID != "" {
		t.Errorf("expected StreamID to be empty after unmarshal, got %q", got.StreamID)
	}
}

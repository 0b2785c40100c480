package provider_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"emaildispatch/internal/job"
	"emaildispatch/internal/provider"
)

func TestMockSendIsDeterministic(t *testing.T) {
	m := provider.NewMock("sendgrid", zap.NewNop(), 0.95, 0.03)

	j, err := job.New([]string{"user@example.com"}, "welcome", nil, job.PriorityHigh, "sendgrid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := m.Send(context.Background(), j, "subject", "body")
	second := m.Send(context.Background(), j, "subject", "body")

	if first.OK != second.OK || first.Retriable != second.Retriable {
		t.Errorf("expected deterministic outcome for the same job id, got %+v then %+v", first, second)
	}
}

func TestRegistryResolvesByName(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register(provider.NewMock("sendgrid", zap.NewNop(), 1, 0))

	if _, err := reg.Get("sendgrid"); err != nil {
		t.Fatalf("expected sendgrid to resolve: %v", err)
	}
	if _, err := reg.Get("unknown"); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

package provider

import (
	"context"
	"crypto/md5"
	"fmt"

	"go.uber.org/zap"

	"emaildispatch/internal/job"
)

// Mock is a deterministic stand-in for a real email transport. Outcome
// is derived from a hash of the job id rather than real randomness, so
// the same job always produces the same result across retries and test
// runs — grounded on the teacher's mock provider's
// generateProviderID/determineOutcome pair.
type Mock struct {
	name         string
	logger       *zap.Logger
	successRate  float64
	tempFailRate float64
}

// NewMock builds a mock provider named name. successRate and
// tempFailRate partition [0,1); anything above their sum is a permanent
// failure.
func NewMock(name string, logger *zap.Logger, successRate, tempFailRate float64) *Mock {
	return &Mock{name: name, logger: logger, successRate: successRate, tempFailRate: tempFailRate}
}

func (m *Mock) Name() string { return m.name }

func (m *Mock) Send(ctx context.Context, j *job.Job, subject, body string) Result {
	hash := md5.Sum([]byte(j.ID))
	value := float64(hash[0]) / 256.0

	switch {
	case value < m.successRate:
		m.logger.Debug("mock provider: sent",
			zap.String("job_id", j.ID), zap.String("provider", m.name))
		return Result{OK: true}
	case value < m.successRate+m.tempFailRate:
		err := fmt.Errorf("mock provider %s: temporary failure: network timeout", m.name)
		m.logger.Debug("mock provider: temporary failure", zap.String("job_id", j.ID), zap.Error(err))
		return Result{OK: false, Retriable: true, Err: err}
	default:
		err := fmt.Errorf("mock provider %s: permanent failure: recipient rejected", m.name)
		m.logger.Debug("mock provider: permanent failure", zap.String("job_id", j.ID), zap.Error(err))
		return Result{OK: false, Retriable: false, Err: err}
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/onboarding-api/internal/models"
	"github.com/noah-isme/onboarding-api/pkg/jobs"
)

// Activation outcomes reported to metrics.
const (
	ActivationResultActivated     = "activated"
	ActivationResultAlreadyActive = "already_active"
	ActivationResultFailed        = "failed"
)

const activationJobType = "account.activate"

type accountActivator interface {
	ActivateAccount(ctx context.Context, id string, at time.Time) (bool, error)
}

// ActivationConfig tunes the activation worker pool.
type ActivationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// ActivationService delivers activation signals to the account store asynchronously.
type ActivationService struct {
	accounts accountActivator
	audit    auditWriter
	metrics  *MetricsService
	logger   *zap.Logger
	timeout  time.Duration
	queue    *jobs.Queue
}

// NewActivationService wires the queue; call Start before dispatching.
func NewActivationService(accounts accountActivator, audit auditWriter, metrics *MetricsService, logger *zap.Logger, cfg ActivationConfig) *ActivationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &ActivationService{accounts: accounts, audit: audit, metrics: metrics, logger: logger, timeout: cfg.Timeout}
	s.queue = jobs.NewQueue("activation", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the workers.
func (s *ActivationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains queued signals and stops the workers.
func (s *ActivationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues an activation signal.
func (s *ActivationService) Dispatch(_ context.Context, signal models.ActivationSignal) error {
	return s.queue.Enqueue(jobs.Job{ID: signal.ChecklistID, Type: activationJobType, Payload: signal})
}

func (s *ActivationService) handle(ctx context.Context, job jobs.Job) error {
	signal, ok := job.Payload.(models.ActivationSignal)
	if !ok {
		return fmt.Errorf("unexpected activation payload %T", job.Payload)
	}
	// Drained jobs run after the queue context is cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	activated, err := s.accounts.ActivateAccount(ctx, signal.EmployeeID, signal.ActivatedAt)
	if err != nil {
		s.metrics.Activation(ActivationResultFailed)
		return err
	}
	if !activated {
		s.metrics.Activation(ActivationResultAlreadyActive)
		s.logger.Info("account already active or unknown", zap.String("employee_id", signal.EmployeeID))
		return nil
	}
	s.metrics.Activation(ActivationResultActivated)
	s.logger.Info("account activated", zap.String("employee_id", signal.EmployeeID), zap.String("checklist_id", signal.ChecklistID))
	recordAudit(ctx, s.audit, s.logger, models.Actor{}, models.AuditActionAccountActivation, models.AuditResourceUser, signal.EmployeeID, signal)
	return nil
}

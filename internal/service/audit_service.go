package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/pkg/jobs"
)

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	ListByClinic(ctx context.Context, clinicID, limit int) ([]models.AuditLog, error)
}

type auditObserver interface {
	ObserveAuditWrite(ok bool, duration time.Duration)
}

// AuditConfig tunes the background writer.
type AuditConfig struct {
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
}

// AuditService writes dashboard actions to the audit trail in the background.
type AuditService struct {
	store   auditStore
	queue   *jobs.Queue[models.AuditLog]
	metrics auditObserver
	logger  *zap.Logger
}

// NewAuditService constructs an AuditService. Call Start before recording.
func NewAuditService(store auditStore, metrics auditObserver, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{store: store, metrics: metrics, logger: logger}
	svc.queue = jobs.New("audit", svc.write, jobs.Config{
		Workers:      cfg.Workers,
		BufferSize:   256,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		DrainTimeout: cfg.DrainTimeout,
		Logger:       logger,
	})
	return svc
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop flushes buffered entries and waits for the workers to exit.
func (s *AuditService) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// Record queues entry for writing. Failures are logged, never returned.
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	if s == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.queue.Enqueue(entry.ID, entry); err != nil {
		s.logger.Warn("audit entry dropped", zap.String("action", entry.Action), zap.Error(err))
	}
}

// Recent returns the newest entries of a clinic.
func (s *AuditService) Recent(ctx context.Context, clinicID, limit int) ([]models.AuditLog, error) {
	if s == nil {
		return nil, nil
	}
	return s.store.ListByClinic(ctx, clinicID, limit)
}

func (s *AuditService) write(ctx context.Context, task jobs.Task[models.AuditLog]) error {
	entry := task.Payload
	start := time.Now()
	err := s.store.Create(ctx, &entry)
	if s.metrics != nil {
		s.metrics.ObserveAuditWrite(err == nil, time.Since(start))
	}
	return err
}

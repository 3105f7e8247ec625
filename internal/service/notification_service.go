package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusreg/enrollment-api/internal/models"
	"github.com/campusreg/enrollment-api/pkg/config"
	"github.com/campusreg/enrollment-api/pkg/jobs"
)

// EventSink receives enrollment events. Implementations are external
// collaborators (webhook, message broker, audit trail); the engine never
// depends on their success.
type EventSink interface {
	Deliver(ctx context.Context, event models.EnrollmentEvent) error
}

// LogSink is the default sink: it records events on the audit log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a logging event sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Deliver writes the event to the log.
func (s *LogSink) Deliver(_ context.Context, event models.EnrollmentEvent) error {
	s.logger.Info("enrollment_event",
		zap.String("type", string(event.Type)),
		zap.String("enrollment_id", event.EnrollmentID),
		zap.String("student_id", event.StudentID),
		zap.String("course_id", event.CourseID),
		zap.String("semester", event.Semester),
		zap.String("grade", event.Grade),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// NotificationService publishes enrollment events to the sink through a
// worker queue. Publish is fire-and-forget: enqueue failures and delivery
// failures are logged, never returned to the engine.
type NotificationService struct {
	queue   *jobs.Queue
	timeout time.Duration
	logger  *zap.Logger
}

// NewNotificationService constructs the publisher and its delivery queue.
func NewNotificationService(cfg config.NotificationConfig, sink EventSink, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.EnrollmentEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		deliverCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return sink.Deliver(deliverCtx, event)
	}

	queue := jobs.NewQueue("notifications", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})

	return &NotificationService{queue: queue, timeout: timeout, logger: logger}
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Publish hands the event to the queue. The caller's result never depends on
// the outcome.
func (s *NotificationService) Publish(_ context.Context, event models.EnrollmentEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(event.Type),
		Payload: event,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue enrollment event",
			zap.String("type", string(event.Type)),
			zap.String("enrollment_id", event.EnrollmentID),
			zap.Error(err),
		)
	}
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/campusreg/enrollment-api/internal/models"
	"github.com/campusreg/enrollment-api/pkg/config"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.EnrollmentEvent
	fail   int
}

func (s *recordingSink) Deliver(ctx context.Context, event models.EnrollmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) delivered() []models.EnrollmentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EnrollmentEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestNotificationServicePublish(t *testing.T) {
	sink := &recordingSink{}
	svc := NewNotificationService(config.NotificationConfig{Workers: 1, BufferSize: 4}, sink, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Publish(context.Background(), models.EnrollmentEvent{
		Type:         models.EventEnrollmentCreated,
		EnrollmentID: "e1",
		StudentID:    "s1",
		CourseID:     "c1",
	})

	assert.Eventually(t, func() bool {
		return len(sink.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events := sink.delivered()
	assert.Equal(t, models.EventEnrollmentCreated, events[0].Type)
	assert.False(t, events[0].OccurredAt.IsZero())
}

func TestNotificationServicePublishBeforeStart(t *testing.T) {
	sink := &recordingSink{}
	svc := NewNotificationService(config.NotificationConfig{Workers: 1}, sink, zap.NewNop())

	// Fire-and-forget: the caller never observes the enqueue failure.
	svc.Publish(context.Background(), models.EnrollmentEvent{Type: models.EventEnrollmentCreated})
	assert.Empty(t, sink.delivered())
}

func TestNotificationServiceRetriesFailedDelivery(t *testing.T) {
	sink := &recordingSink{fail: 1}
	svc := NewNotificationService(config.NotificationConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	}, sink, zap.NewNop())
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Publish(context.Background(), models.EnrollmentEvent{Type: models.EventEnrollmentDropped, EnrollmentID: "e1"})

	assert.Eventually(t, func() bool {
		return len(sink.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

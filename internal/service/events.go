package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/residency-logbook-api/internal/models"
	"github.com/noah-isme/residency-logbook-api/pkg/jobs"
)

// RecordTransitioned is emitted after every committed lifecycle change. The
// zero value of From marks creation, of To deletion.
type RecordTransitioned struct {
	RecordID string              `json:"recordId"`
	OwnerID  string              `json:"ownerId"`
	Category string              `json:"category"`
	From     models.RecordStatus `json:"from,omitempty"`
	To       models.RecordStatus `json:"to,omitempty"`
	ActorID  string              `json:"actorId"`
	At       time.Time           `json:"at"`
}

// TransitionSubscriber consumes transition events.
type TransitionSubscriber interface {
	HandleTransition(ctx context.Context, event RecordTransitioned) error
}

// TransitionBus fans transition events out to subscribers on the background
// worker queue, keeping cache invalidation and audit writes off the request
// path.
type TransitionBus struct {
	queue       *jobs.Queue
	subscribers []TransitionSubscriber
	logger      *zap.Logger
}

// NewTransitionBus builds the bus with its worker queue.
func NewTransitionBus(subscribers []TransitionSubscriber, logger *zap.Logger) *TransitionBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := &TransitionBus{subscribers: subscribers, logger: logger}
	bus.queue = jobs.NewQueue("record-transitions", bus.dispatch, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		Logger:     logger,
	})
	return bus
}

// Start begins background dispatch.
func (b *TransitionBus) Start(ctx context.Context) {
	b.queue.Start(ctx)
}

// Stop drains the workers.
func (b *TransitionBus) Stop() {
	b.queue.Stop()
}

// Publish enqueues the event. Publishing never fails the request that caused
// the transition; a full queue is logged and dropped.
func (b *TransitionBus) Publish(event RecordTransitioned) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "record.transitioned",
		Payload: event,
	}
	if err := b.queue.Enqueue(job); err != nil {
		b.logger.Warn("dropping transition event", zap.String("record_id", event.RecordID), zap.Error(err))
	}
}

func (b *TransitionBus) dispatch(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(RecordTransitioned)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	for _, sub := range b.subscribers {
		if err := sub.HandleTransition(ctx, event); err != nil {
			b.logger.Warn("transition subscriber failed",
				zap.String("record_id", event.RecordID),
				zap.String("to", string(event.To)),
				zap.Error(err))
		}
	}
	return nil
}

// CacheInvalidator drops cached list and summary payloads for the owner of a
// transitioned record.
type CacheInvalidator struct {
	cache *CacheService
}

// NewCacheInvalidator constructs the subscriber.
func NewCacheInvalidator(cache *CacheService) *CacheInvalidator {
	return &CacheInvalidator{cache: cache}
}

// HandleTransition implements TransitionSubscriber.
func (c *CacheInvalidator) HandleTransition(ctx context.Context, event RecordTransitioned) error {
	if c.cache == nil || !c.cache.Enabled() {
		return nil
	}
	if err := c.cache.Invalidate(ctx, fmt.Sprintf("records:%s:*", event.OwnerID)); err != nil {
		return err
	}
	return c.cache.Invalidate(ctx, fmt.Sprintf("summary:%s", event.OwnerID))
}

type transitionAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditRecorder appends an audit_logs row per transition.
type AuditRecorder struct {
	audit transitionAuditLogger
}

// NewAuditRecorder constructs the subscriber.
func NewAuditRecorder(audit transitionAuditLogger) *AuditRecorder {
	return &AuditRecorder{audit: audit}
}

// HandleTransition implements TransitionSubscriber.
func (a *AuditRecorder) HandleTransition(ctx context.Context, event RecordTransitioned) error {
	if a.audit == nil {
		return nil
	}
	payload, _ := json.Marshal(event)
	return a.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &event.ActorID,
		Action:     auditActionFor(event),
		Resource:   event.Category,
		ResourceID: &event.RecordID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "transition-bus",
	})
}

func auditActionFor(event RecordTransitioned) string {
	switch {
	case event.From == "" && event.To == models.RecordStatusDraft:
		return models.AuditActionRecordCreate
	case event.To == "":
		return models.AuditActionRecordDelete
	case event.To == models.RecordStatusSubmitted:
		return models.AuditActionRecordSubmit
	case event.To == models.RecordStatusSigned:
		return models.AuditActionRecordSign
	case event.To == models.RecordStatusNeedsRevision:
		return models.AuditActionRecordReject
	default:
		return models.AuditActionRecordSubmit
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/teacher-attendance-api/pkg/errors"
	"github.com/noah-isme/teacher-attendance-api/pkg/jobs"
	"github.com/noah-isme/teacher-attendance-api/pkg/notify"
)

const notificationJobType = "notification"

// NotificationService fans a message out to every channel the recipient can
// receive. Deliveries are attempted once; failures are reported, never raised.
type NotificationService struct {
	notifiers []notify.Notifier
	queue     *jobs.Queue
	timeout   time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService constructs the dispatcher. timeout bounds each channel call.
func NewNotificationService(notifiers []notify.Notifier, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NotificationService{notifiers: notifiers, timeout: timeout, metrics: metrics, logger: logger}
}

// UseQueue switches the dispatcher to asynchronous delivery through q. The
// queue must be built with HandleJob as its handler.
func (s *NotificationService) UseQueue(q *jobs.Queue) {
	s.queue = q
}

// HandleJob is the jobs.Handler for queued notifications.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(notify.Message)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	outcome := s.deliver(ctx, msg)
	if !outcome.Succeeded() {
		return errors.New("one or more deliveries failed")
	}
	return nil
}

// Dispatch sends msg synchronously, or enqueues it when a queue is attached.
// A nil dispatcher or a recipient with no reachable channel yields an empty outcome.
func (s *NotificationService) Dispatch(ctx context.Context, msg notify.Message) *notify.Outcome {
	if s == nil {
		return &notify.Outcome{Kind: msg.Kind}
	}
	if !s.reachable(msg.Recipient) {
		return &notify.Outcome{Kind: msg.Kind}
	}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: msg})
		if err == nil {
			return &notify.Outcome{Kind: msg.Kind, Queued: true}
		}
		s.logger.Warn("notification not queued", zap.String("kind", string(msg.Kind)), zap.Error(err))
		return &notify.Outcome{Kind: msg.Kind, Deliveries: []notify.Delivery{{
			Recipient: msg.Recipient.Name,
			Code:      appErrors.NotificationFailureCode,
			Error:     err.Error(),
			SentAt:    time.Now().UTC(),
		}}}
	}
	return s.deliver(ctx, msg)
}

func (s *NotificationService) reachable(r notify.Recipient) bool {
	for _, n := range s.notifiers {
		if n.Accepts(r) {
			return true
		}
	}
	return false
}

func (s *NotificationService) deliver(ctx context.Context, msg notify.Message) *notify.Outcome {
	outcome := &notify.Outcome{Kind: msg.Kind}
	for _, n := range s.notifiers {
		if !n.Accepts(msg.Recipient) {
			continue
		}
		delivery := notify.Delivery{Channel: n.Channel(), Recipient: address(n.Channel(), msg.Recipient)}

		sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := n.Send(sendCtx, msg)
		cancel()

		delivery.SentAt = time.Now().UTC()
		if err != nil {
			delivery.Code = appErrors.NotificationFailureCode
			delivery.Error = err.Error()
			s.logger.Warn("notification delivery failed",
				zap.String("kind", string(msg.Kind)),
				zap.String("channel", string(n.Channel())),
				zap.String("recipient", delivery.Recipient),
				zap.Error(err))
		} else {
			delivery.Success = true
			s.logger.Info("notification delivered",
				zap.String("kind", string(msg.Kind)),
				zap.String("channel", string(n.Channel())),
				zap.String("recipient", delivery.Recipient))
		}
		s.metrics.RecordNotification(string(msg.Kind), string(n.Channel()), delivery.Success)
		outcome.Deliveries = append(outcome.Deliveries, delivery)
	}
	return outcome
}

func address(ch notify.Channel, r notify.Recipient) string {
	if ch == notify.ChannelSMS {
		return r.Phone
	}
	return r.Email
}

package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"splitpay/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationSplitStarted   NotificationType = "SPLIT_STARTED"
	NotificationPartStarted    NotificationType = "PART_STARTED"
	NotificationPartApproved   NotificationType = "PART_APPROVED"
	NotificationPartFailed     NotificationType = "PART_FAILED"
	NotificationSplitCompleted NotificationType = "SPLIT_COMPLETED"
	NotificationSplitFailed    NotificationType = "SPLIT_FAILED"
)

const transitionEventType = "SplitPaymentTransition"

// Notification represents one split payment transition.
type Notification struct {
	Type      NotificationType
	SplitID   string
	PartIndex int // -1 for split-level notifications
	Message   string
	Data      map[string]interface{}
	CreatedAt time.Time
}

// NotificationService reports split payment transitions to the log and, when
// the context carries a New Relic transaction, as custom events.
type NotificationService struct{}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotifySplitStarted reports that a split payment was accepted.
func (s *NotificationService) NotifySplitStarted(ctx context.Context, progress *domain.SplitPaymentProgress) error {
	return s.send(ctx, Notification{
		Type:      NotificationSplitStarted,
		SplitID:   progress.ID,
		PartIndex: -1,
		Message:   fmt.Sprintf("split payment of %s in %d parts", progress.Total.Total.StringFixed(2), len(progress.Parts)),
		Data: map[string]interface{}{
			"reference": progress.Reference,
			"parts":     len(progress.Parts),
		},
		CreatedAt: progress.UpdatedAt,
	})
}

// NotifyPartStarted reports that a part was sent to the terminal.
func (s *NotificationService) NotifyPartStarted(ctx context.Context, progress *domain.SplitPaymentProgress, index int) error {
	part := progress.Parts[index]
	return s.send(ctx, Notification{
		Type:      NotificationPartStarted,
		SplitID:   progress.ID,
		PartIndex: index,
		Message:   fmt.Sprintf("%s part for %s", part.Method, part.Amount.Total.StringFixed(2)),
		Data: map[string]interface{}{
			"reference":           part.Reference,
			"preceding_reference": part.PrecedingReference,
		},
		CreatedAt: progress.UpdatedAt,
	})
}

// NotifyPartApproved reports that a part was approved by the terminal.
func (s *NotificationService) NotifyPartApproved(ctx context.Context, progress *domain.SplitPaymentProgress, index int) error {
	part := progress.Parts[index]
	return s.send(ctx, Notification{
		Type:      NotificationPartApproved,
		SplitID:   progress.ID,
		PartIndex: index,
		Message:   fmt.Sprintf("transaction %s approved", part.TransactionID),
		Data: map[string]interface{}{
			"transaction_id": part.TransactionID,
			"amount":         part.Amount.Total.StringFixed(2),
		},
		CreatedAt: progress.UpdatedAt,
	})
}

// NotifyPartFailed reports that a part was rejected or errored.
func (s *NotificationService) NotifyPartFailed(ctx context.Context, progress *domain.SplitPaymentProgress, index int) error {
	part := progress.Parts[index]
	return s.send(ctx, Notification{
		Type:      NotificationPartFailed,
		SplitID:   progress.ID,
		PartIndex: index,
		Message:   part.Error,
		Data: map[string]interface{}{
			"status":         string(part.Status),
			"transaction_id": part.TransactionID,
		},
		CreatedAt: progress.UpdatedAt,
	})
}

// NotifySplitFinished reports the terminal status of a split payment. A
// failed split with approved parts is flagged for manual void.
func (s *NotificationService) NotifySplitFinished(ctx context.Context, progress *domain.SplitPaymentProgress) error {
	notificationType := NotificationSplitCompleted
	if progress.Status == domain.SplitStatusFailed {
		notificationType = NotificationSplitFailed
	}

	return s.send(ctx, Notification{
		Type:      notificationType,
		SplitID:   progress.ID,
		PartIndex: -1,
		Message:   progress.Message,
		Data: map[string]interface{}{
			"approved_parts": len(progress.ApprovedParts()),
			"needs_void":     progress.NeedsVoid(),
		},
		CreatedAt: progress.UpdatedAt,
	})
}

func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	log.Printf("[SPLIT] type=%s split=%s part=%d message=%q",
		notification.Type, notification.SplitID, notification.PartIndex, notification.Message)

	if app := newrelic.FromContext(ctx).Application(); app != nil {
		params := map[string]interface{}{
			"type":      string(notification.Type),
			"splitId":   notification.SplitID,
			"partIndex": notification.PartIndex,
		}
		for k, v := range notification.Data {
			params[k] = v
		}
		app.RecordCustomEvent(transitionEventType, params)
	}

	return nil
}

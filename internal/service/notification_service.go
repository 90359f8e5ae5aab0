package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"instrument-advisor-be/internal/dto"
	"instrument-advisor-be/internal/pkg/logger"
	"instrument-advisor-be/pkg/events"
	pktNats "instrument-advisor-be/pkg/nats"
)

// NotificationDelivery defines how to push real-time updates.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	Send(sessionID string, notification dto.Notification)
	Broadcast(notification dto.Notification)
}

type NotificationService struct {
	subscriber *pktNats.Subscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
}

func NewNotificationService(sub *pktNats.Subscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (s *NotificationService) Start() {
	err := s.subscriber.Subscribe("events.>", "notif-service-worker", s.handleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("NotificationService", "Notification service started, listening to events.>", nil)
}

func (s *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	typeCode := strings.TrimPrefix(event.EventType(), "events.")
	s.logger.Debug("NotificationService", "Processing event", map[string]interface{}{"type": typeCode})

	notif, ok := s.buildNotification(typeCode, event)
	if !ok {
		return nil
	}
	if s.delivery == nil {
		return nil
	}

	if notif.SessionID == "" {
		s.delivery.Broadcast(notif)
		return nil
	}
	s.delivery.Send(notif.SessionID, notif)
	return nil
}

// buildNotification maps event codes to the user-facing pushes.
// Unlisted events are consumed silently.
func (s *NotificationService) buildNotification(typeCode string, event events.Event) (dto.Notification, bool) {
	payload := event.Payload()
	sessionID, _ := payload["session_id"].(string)

	notif := dto.Notification{
		SessionID: sessionID,
		TypeCode:  typeCode,
		Metadata:  payload,
		CreatedAt: time.Now(),
	}

	switch typeCode {
	case events.TypeAnalysisComplete:
		message, _ := payload["message"].(string)
		productType, _ := payload["product_type"].(string)
		notif.Title = "Analysis Complete"
		notif.Message = message
		if notif.Message == "" {
			notif.Message = fmt.Sprintf("Your %s analysis has finished.", productType)
		}
	case events.TypeAnalysisFailed:
		notif.Title = "Analysis Failed"
		notif.Message = "The product analysis could not be completed. Type 'rerun' in the chat to try again."
	default:
		return dto.Notification{}, false
	}
	return notif, true
}

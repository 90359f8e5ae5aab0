package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"instrument-advisor-be/internal/dto"
	"instrument-advisor-be/internal/repository/contract"
	"instrument-advisor-be/internal/repository/memory"
	"instrument-advisor-be/internal/repository/specification"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	projects  contract.ProjectRepository
	sessions  *memory.SessionRepository
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	projects contract.ProjectRepository,
	sessions *memory.SessionRepository,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		projects:  projects,
		sessions:  sessions,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.ArchiveSessionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal archive message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Archiving session %s", payload.SessionID)

	conv, ok := cs.sessions.Get(payload.SessionID)
	if !ok {
		log.Printf("[WARN] Session %s already gone, nothing to archive", payload.SessionID)
		msg.Ack()
		return
	}

	name := payload.Name
	if name == "" {
		name = defaultProjectName(conv.ProductType, conv.CreatedAt)
	}

	existing, err := cs.projects.FindOne(ctx, specification.BySessionID{SessionID: payload.SessionID})
	if err != nil {
		log.Printf("[ERROR] Failed to look up project for session %s: %v", payload.SessionID, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	project := snapshotProject(conv, name)
	if existing != nil {
		project.Id = existing.Id
		project.CreatedAt = existing.CreatedAt
		if existing.Name != "" {
			project.Name = existing.Name
		}
		err = cs.projects.Update(ctx, project)
	} else {
		err = cs.projects.Create(ctx, project)
	}
	if err != nil {
		log.Printf("[ERROR] Failed to persist session %s: %v", payload.SessionID, err)
		msg.Nack()
		return
	}

	if payload.Ephemeral {
		cs.sessions.Delete(payload.SessionID)
	}

	log.Printf("[SUCCESS] Session %s archived as project %s", payload.SessionID, project.Id)
	msg.Ack()
}

func defaultProjectName(productType string, createdAt time.Time) string {
	if productType == "" {
		productType = "Advisory session"
	}
	return fmt.Sprintf("%s (%s)", productType, createdAt.Format("2006-01-02 15:04"))
}

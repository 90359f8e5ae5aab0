package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instrument-advisor-be/internal/dto"
	"instrument-advisor-be/internal/repository/memory"
	"instrument-advisor-be/pkg/store"
)

func newArchiveFixture() (*consumerService, *fakeProjectRepository, *memory.SessionRepository) {
	repo := newFakeProjectRepository()
	sessions := memory.NewSessionRepository()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	cs := NewConsumerService(pubSub, "archive_sessions", repo, sessions).(*consumerService)
	return cs, repo, sessions
}

func archiveMessage(t *testing.T, payload dto.ArchiveSessionMessage) *message.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), data)
}

func TestArchivePersistsSnapshot(t *testing.T) {
	cs, repo, sessions := newArchiveFixture()

	conv := store.NewConversation()
	conv.ProductType = "pressure transmitter"
	conv.CollectedData = map[string]interface{}{"productType": "pressure transmitter"}
	sessions.Save(conv)

	msg := archiveMessage(t, dto.ArchiveSessionMessage{SessionID: conv.SessionID, Name: "Boiler feed"})
	cs.processMessage(context.Background(), msg)

	require.Len(t, repo.projects, 1)
	for _, p := range repo.projects {
		assert.Equal(t, "Boiler feed", p.Name)
		assert.Equal(t, conv.SessionID, p.SessionID)
		assert.Equal(t, "pressure transmitter", p.ProductType)
	}

	// Non-ephemeral archive keeps the live session around.
	_, ok := sessions.Get(conv.SessionID)
	assert.True(t, ok)
}

func TestArchiveEphemeralDeletesSession(t *testing.T) {
	cs, repo, sessions := newArchiveFixture()

	conv := store.NewConversation()
	conv.ProductType = "flow meter"
	sessions.Save(conv)

	msg := archiveMessage(t, dto.ArchiveSessionMessage{SessionID: conv.SessionID, Ephemeral: true})
	cs.processMessage(context.Background(), msg)

	require.Len(t, repo.projects, 1)
	_, ok := sessions.Get(conv.SessionID)
	assert.False(t, ok)

	// A derived name includes the product type.
	for _, p := range repo.projects {
		assert.Contains(t, p.Name, "flow meter")
	}
}

func TestArchiveMissingSessionIsIgnored(t *testing.T) {
	cs, repo, _ := newArchiveFixture()

	msg := archiveMessage(t, dto.ArchiveSessionMessage{SessionID: "gone"})
	cs.processMessage(context.Background(), msg)

	assert.Empty(t, repo.projects)
}

func TestArchiveKeepsExistingName(t *testing.T) {
	cs, repo, sessions := newArchiveFixture()

	conv := store.NewConversation()
	conv.ProductType = "flow meter"
	sessions.Save(conv)

	first := archiveMessage(t, dto.ArchiveSessionMessage{SessionID: conv.SessionID, Name: "Named by user"})
	cs.processMessage(context.Background(), first)

	second := archiveMessage(t, dto.ArchiveSessionMessage{SessionID: conv.SessionID})
	cs.processMessage(context.Background(), second)

	require.Len(t, repo.projects, 1)
	for _, p := range repo.projects {
		assert.Equal(t, "Named by user", p.Name)
	}
}

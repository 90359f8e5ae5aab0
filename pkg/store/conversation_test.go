package store

import "testing"

func TestUpdateMessageRewritesContentInPlace(t *testing.T) {
	conv := NewConversation()
	first := NewMessage(RoleUser, "flow meter")
	second := NewMessage(RoleAssistant, "partial answer")
	conv.Messages = append(conv.Messages, first, second)

	if !conv.UpdateMessage(second.ID, "full answer") {
		t.Fatalf("expected message %s to be found", second.ID)
	}
	if got := conv.Messages[1].Content; got != "full answer" {
		t.Errorf("content = %q, want %q", got, "full answer")
	}
	if conv.Messages[0].Content != "flow meter" {
		t.Errorf("unrelated message mutated: %q", conv.Messages[0].Content)
	}
	if len(conv.Messages) != 2 {
		t.Errorf("message count changed: %d", len(conv.Messages))
	}
}

func TestUpdateMessageUnknownID(t *testing.T) {
	conv := NewConversation()
	conv.Messages = append(conv.Messages, NewMessage(RoleUser, "hello"))

	if conv.UpdateMessage("missing", "replacement") {
		t.Fatal("expected unknown id to report false")
	}
	if conv.Messages[0].Content != "hello" {
		t.Errorf("transcript mutated: %q", conv.Messages[0].Content)
	}
}

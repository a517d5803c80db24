package presentation

import (
	"errors"
	"testing"

	"github.com/sglre6355/jukebot/internal/bot"
)

func TestPingHandler_Replies(t *testing.T) {
	handler := NewPingHandler()
	responder := &bot.MockResponder{}

	if err := handler.Handle(nil, nil, "", responder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(responder.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(responder.Messages))
	}
	if responder.LastMessage() != "Pong! Gateway latency is not measured yet." {
		t.Errorf("unexpected reply %q", responder.LastMessage())
	}
}

func TestPingHandler_ResponderError(t *testing.T) {
	handler := NewPingHandler()
	expectedErr := errors.New("responder failed")
	responder := &bot.MockResponder{Err: expectedErr}

	err := handler.Handle(nil, nil, "", responder)
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
}

package core

import (
	"context"
	"testing"
)

func TestChatRequest_Messages(t *testing.T) {
	req := &ChatRequest{SystemPrompt: "be brief", UserPrompt: "Hello", MaxTokens: 16}

	msgs := req.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(Messages()) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != "be brief" {
		t.Errorf("first message = %+v, want system/be brief", msgs[0])
	}
	if msgs[1].Role != RoleUser || msgs[1].Content != "Hello" {
		t.Errorf("second message = %+v, want user/Hello", msgs[1])
	}
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want req-123", got)
	}
	if Logger(ctx) == nil {
		t.Error("Logger() returned nil")
	}
}

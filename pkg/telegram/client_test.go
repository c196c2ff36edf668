package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	pkgerrors "github.com/telestars/premium-backend/pkg/errors"
)

func TestSendMessageRetriesTransientFailures(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			http.Error(w, `{"ok":false}`, http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, err := NewClient("bot-token", WithBaseURL(server.URL), WithMaxRetries(2))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.SendMessage(context.Background(), 42, "order approved"); err != nil {
		t.Fatalf("send message: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestSendMessageDoesNotRetryClientErrors(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewClient("bot-token", WithBaseURL(server.URL), WithMaxRetries(3))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.SendMessage(context.Background(), 42, "hello")
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("expected no retries on 400, got %d attempts", got)
	}
}

func TestSendMessageValidatesInput(t *testing.T) {
	client, err := NewClient("bot-token")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.SendMessage(context.Background(), 0, "hi"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing chat, got %v", err)
	}
	if err := client.SendMessage(context.Background(), 42, "  "); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty text, got %v", err)
	}
}

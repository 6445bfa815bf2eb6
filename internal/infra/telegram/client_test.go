package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 55}}`))
	}))
	defer srv.Close()

	client := NewClient("token-123", srv.URL, testLogger())
	err := client.SendMessage(context.Background(), "4242", "hello <b>there</b>")

	require.NoError(t, err)
	require.Equal(t, "/bottoken-123/sendMessage", gotPath)
	require.Equal(t, "4242", gotPayload["chat_id"])
	require.Equal(t, "hello <b>there</b>", gotPayload["text"])
	require.Equal(t, "HTML", gotPayload["parse_mode"])
}

func TestSendReplyIncludesReplyTo(t *testing.T) {
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client := NewClient("token", srv.URL, testLogger())
	require.NoError(t, client.SendReply(context.Background(), "1", "re", 77))
	require.EqualValues(t, 77, gotPayload["reply_to_message_id"])
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok": false, "description": "Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	client := NewClient("token", srv.URL, testLogger())
	err := client.SendMessage(context.Background(), "0", "hi")

	require.Error(t, err)
	require.Contains(t, err.Error(), "chat not found")
}

func TestWebhookLifecycle(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch {
		case r.URL.Path == "/bottoken/getWebhookInfo":
			_, _ = w.Write([]byte(`{"ok": true, "result": {"url": "https://example.com/webhook/telegram", "pending_update_count": 3}}`))
		default:
			_, _ = w.Write([]byte(`{"ok": true, "result": true}`))
		}
	}))
	defer srv.Close()

	client := NewClient("token", srv.URL, testLogger())
	ctx := context.Background()

	require.NoError(t, client.SetWebhook(ctx, "https://example.com/webhook/telegram"))
	info, err := client.WebhookInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/webhook/telegram", info["url"])
	require.NoError(t, client.DeleteWebhook(ctx))

	require.Equal(t, []string{
		"/bottoken/setWebhook",
		"/bottoken/getWebhookInfo",
		"/bottoken/deleteWebhook",
	}, calls)
}

func TestUnexpectedResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	client := NewClient("token", srv.URL, testLogger())
	err := client.SendMessage(context.Background(), "1", "hi")
	require.Error(t, err)
}

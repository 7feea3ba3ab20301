package qstash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublish(t *testing.T) {
	t.Parallel()

	var (
		gotPath  string
		gotAuth  string
		gotDedup string
		gotBody  map[string]string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDedup = r.Header.Get("Upstash-Deduplication-Id")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{"messageId":"msg_1"}`)
	}))
	t.Cleanup(server.Close)

	client := MustNew(Config{URL: server.URL, Token: "tok", Retries: 2})
	id, err := client.Publish(context.Background(), "https://hooks.slack.com/services/x", map[string]string{"text": "hi"}, "session-1")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "msg_1" {
		t.Fatalf("unexpected message id: %s", id)
	}
	if gotPath != "/v2/publish/https://hooks.slack.com/services/x" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer tok" || gotDedup != "session-1" {
		t.Fatalf("unexpected headers: auth=%q dedup=%q", gotAuth, gotDedup)
	}
	if gotBody["text"] != "hi" {
		t.Fatalf("unexpected body: %v", gotBody)
	}
}

func TestPublishNon2xx(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid token"}`)
	}))
	t.Cleanup(server.Close)

	client := MustNew(Config{URL: server.URL, Token: "tok"})
	if _, err := client.Publish(context.Background(), "https://example.com", map[string]string{}, ""); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{URL: "https://qstash.upstash.io"}); err == nil {
		t.Fatal("expected error without token")
	}
}

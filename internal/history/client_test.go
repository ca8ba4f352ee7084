package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/conversations/c1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "100" {
			t.Errorf("limit = %q, want clamped to 100", got)
		}
		if got := r.URL.Query().Get("offset"); got != "0" {
			t.Errorf("offset = %q, want 0", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"1","sender_id":"u2","content":"hello","is_edited":false,"is_deleted":false,"created_at":"2024-05-01T10:00:00","updated_at":"2024-05-01T10:00:00"},
			{"id":"2","sender_id":"u1","content":"hi","is_edited":true,"is_deleted":false,"created_at":"2024-05-01T10:01:00","updated_at":"2024-05-01T10:02:00","read_at":"2024-05-01T10:03:00"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", time.Second, nil)
	page, err := c.Fetch(context.Background(), "c1", 500, -3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(page.Messages))
	}

	first := page.Messages[0]
	if first.ID != "1" || first.ConversationID != "c1" {
		t.Errorf("first = %+v", first)
	}
	if want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC); !first.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, want)
	}
	if !page.Messages[1].Edited {
		t.Error("second message should be edited")
	}
	if page.Messages[1].ReadAt == nil {
		t.Error("second message should carry read_at")
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"Not a member of this conversation"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok", time.Second, nil).Fetch(context.Background(), "c1", 0, 0)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *StatusError", err)
	}
	if se.Code != http.StatusForbidden {
		t.Errorf("Code = %d, want 403", se.Code)
	}
	if se.Detail != "Not a member of this conversation" {
		t.Errorf("Detail = %q", se.Detail)
	}
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient("http://127.0.0.1:1", "", time.Second, nil).Fetch(ctx, "c1", 0, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestDecodePageWithParticipants(t *testing.T) {
	page, err := DecodePage([]byte(`{
		"participants": [{"user": {"id": "u2", "username": "bob"}}, {"id": "u3", "email": "cy@x.io"}],
		"messages": [
			{"id": 1, "sender_id": "u2", "content": "hello"},
			{"id": 2, "sender_id": "u3", "content": "yo", "sender_username": "cyrus"},
			"garbage",
			{}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(page.Messages))
	}
	if got := page.Messages[0].SenderName; got != "bob" {
		t.Errorf("SenderName = %q, want bob from the roster", got)
	}
	if got := page.Messages[1].SenderName; got != "cyrus" {
		t.Errorf("SenderName = %q, want explicit name cyrus", got)
	}
	if got := page.Participants["u3"]; got != "cy@x.io" {
		t.Errorf("participant u3 = %q", got)
	}
}

func TestDecodePageRejectsGarbage(t *testing.T) {
	for _, body := range []string{`not json`, `"string"`, `42`} {
		if _, err := DecodePage([]byte(body)); err == nil {
			t.Errorf("DecodePage(%s): expected error", body)
		}
	}
}

func TestConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/conversations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"c1","name":"general","is_group":true,"created_at":"2024-05-01T10:00:00Z"},{"id":"c2","name":null}]`))
	}))
	defer srv.Close()

	convs, err := NewClient(srv.URL, "tok", time.Second, nil).Conversations(context.Background(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].Title() != "general" || !convs[0].IsGroup {
		t.Errorf("convs[0] = %+v", convs[0])
	}
	if convs[1].Title() != "c2" {
		t.Errorf("convs[1].Title() = %q, want id fallback", convs[1].Title())
	}
}

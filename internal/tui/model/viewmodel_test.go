package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/store"
)

type fakeArchive struct {
	convs    map[string]store.Conversation
	order    []string
	readOnly bool
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{convs: map[string]store.Conversation{}}
}

func (f *fakeArchive) UpsertConversation(c *store.Conversation) error {
	if f.readOnly {
		return store.ErrReadOnly
	}
	if _, ok := f.convs[c.ID]; !ok {
		f.order = append(f.order, c.ID)
	}
	f.convs[c.ID] = *c
	return nil
}

func (f *fakeArchive) ListConversations(limit, offset int) ([]store.Conversation, error) {
	var out []store.Conversation
	for _, id := range f.order {
		out = append(out, f.convs[id])
	}
	return out, nil
}

func (f *fakeArchive) SearchMessages(query, conversationID string, limit int) ([]store.SearchResult, error) {
	return nil, nil
}

func (f *fakeArchive) GetState(key string) (string, error) { return "c9", nil }

type fakeRemote struct {
	convs []chat.Conversation
	err   error
}

func (f *fakeRemote) Conversations(context.Context, int, int) ([]chat.Conversation, error) {
	return f.convs, f.err
}

func TestLoadConversationsMergesRemote(t *testing.T) {
	archive := newFakeArchive()
	remote := &fakeRemote{convs: []chat.Conversation{{ID: "c1", Name: "General", IsGroup: true}, {ID: "c2"}}}
	vm := NewViewModel(archive, remote, nil, nil)

	if err := vm.LoadConversations(context.Background()); err != nil {
		t.Fatal(err)
	}
	convs := vm.Conversations()
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if vm.Title("c1") != "General" {
		t.Errorf("Title(c1) = %q, want General", vm.Title("c1"))
	}
	if vm.Title("c2") != "c2" {
		t.Errorf("Title(c2) = %q, want id fallback", vm.Title("c2"))
	}
	if vm.LastConversation() != "c9" {
		t.Errorf("LastConversation() = %q", vm.LastConversation())
	}
}

func TestLoadConversationsRemoteFailureStillLists(t *testing.T) {
	archive := newFakeArchive()
	_ = archive.UpsertConversation(&store.Conversation{ID: "local"})
	vm := NewViewModel(archive, &fakeRemote{err: errors.New("offline")}, nil, nil)

	err := vm.LoadConversations(context.Background())
	if err == nil {
		t.Error("expected the remote error to surface")
	}
	if len(vm.Conversations()) != 1 {
		t.Errorf("archived conversations not listed: %+v", vm.Conversations())
	}
}

func TestLoadConversationsReadOnlyArchive(t *testing.T) {
	archive := newFakeArchive()
	archive.readOnly = true
	vm := NewViewModel(archive, &fakeRemote{convs: []chat.Conversation{{ID: "c1"}}}, nil, nil)

	if err := vm.LoadConversations(context.Background()); err != nil {
		t.Fatalf("read-only archive must not fail listing: %v", err)
	}
}

func TestLeaveAndCloseWithoutActiveView(t *testing.T) {
	vm := NewViewModel(newFakeArchive(), nil, nil, nil)
	vm.Leave(nil)
	vm.Close()
	if vm.Active() != nil {
		t.Error("expected no active view")
	}
}

func TestFlashStacks(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f := Flash{Now: func() time.Time { return now }}

	f.Set("Send failed", 5*time.Second)
	bell := f.Set("bob: hi", time.Minute)
	if got := f.Get(); got != "bob: hi" {
		t.Errorf("Get() = %q, want the newest message", got)
	}

	f.Drop(bell)
	if got := f.Get(); got != "Send failed" {
		t.Errorf("Get() after Drop = %q, want the message beneath", got)
	}
	f.Drop(bell)

	now = now.Add(5 * time.Second)
	if got := f.Get(); got != "" {
		t.Errorf("Get() = %q, want expired message gone", got)
	}
}

func TestFlashNewestExpiresFirst(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f := Flash{Now: func() time.Time { return now }}

	f.Set("Marked 3 messages read", time.Minute)
	f.Set("Sending too fast, slow down", time.Second)

	now = now.Add(2 * time.Second)
	if got := f.Get(); got != "Marked 3 messages read" {
		t.Errorf("Get() = %q, want the longer-lived message", got)
	}
}

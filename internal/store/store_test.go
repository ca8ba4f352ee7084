package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	rw, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rw.Close() })
	if err := rw.UpsertMessage(&Message{ConversationID: "c1", MsgID: "m1", Body: "hi", Timestamp: 1000}); err != nil {
		t.Fatal(err)
	}

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ro.Close() })

	result, err := ro.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2", result.Version)
	}
	if err := ro.SetState("k", "v"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("SetState on read-only archive: err = %v, want ErrReadOnly", err)
	}
	msgs, err := ro.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Errorf("read-only list = %d messages, want 1", len(msgs))
	}
}

func TestConversationUpsertAndList(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{ID: "c1", Name: "General", IsGroup: true}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&Conversation{ID: "c2"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdatePreview("c2", "latest", 2000); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdatePreview("c1", "older", 1000); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != "c2" {
		t.Errorf("first conversation = %s, want c2 (most recent)", convs[0].ID)
	}
	if convs[0].Name != "c2" {
		t.Errorf("unnamed conversation name = %q, want id fallback", convs[0].Name)
	}
	if convs[1].Name != "General" || !convs[1].IsGroup {
		t.Errorf("c1 = %+v", convs[1])
	}

	// An empty name must not clear a known one.
	if err := db.UpsertConversation(&Conversation{ID: "c1", IsGroup: true}); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "General" {
		t.Errorf("name = %q, want General", c.Name)
	}
}

func TestPreviewNeverMovesBackward(t *testing.T) {
	db := testDB(t)

	if err := db.UpdatePreview("c1", "new", 2000); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdatePreview("c1", "stale", 1000); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessagePreview != "new" || c.LastMessageAt != 2000 {
		t.Errorf("preview = %q at %d, want new at 2000", c.LastMessagePreview, c.LastMessageAt)
	}
}

func TestGetConversationMissing(t *testing.T) {
	db := testDB(t)

	c, err := db.GetConversation("nope")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil, got %+v", c)
	}
}

func TestUnreadCountIsComputed(t *testing.T) {
	db := testDB(t)

	msgs := []Message{
		{ConversationID: "c1", MsgID: "1", Body: "a", SenderID: "u2", Timestamp: 1000},
		{ConversationID: "c1", MsgID: "2", Body: "b", SenderID: "u2", Timestamp: 2000},
		{ConversationID: "c1", MsgID: "3", Body: "c", SenderID: "u2", Timestamp: 3000, ReadAt: 3500},
		{ConversationID: "c1", MsgID: "4", Body: "mine", SenderID: "u1", FromMe: true, Timestamp: 4000},
		{ConversationID: "c1", MsgID: "5", Body: "gone", SenderID: "u2", Deleted: true, Timestamp: 5000},
	}
	if err := db.BulkUpsertMessages(msgs); err != nil {
		t.Fatal(err)
	}

	if err := db.UpsertConversation(&Conversation{ID: "c1"}); err != nil {
		t.Fatal(err)
	}
	c, err := db.GetConversation("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 2 {
		t.Errorf("unread = %d, want 2", c.UnreadCount)
	}

	if err := db.MarkConversationRead("c1", 1500); err != nil {
		t.Fatal(err)
	}
	c, _ = db.GetConversation("c1")
	if c.UnreadCount != 1 {
		t.Errorf("unread after marker = %d, want 1", c.UnreadCount)
	}

	// The marker never moves backward.
	if err := db.MarkConversationRead("c1", 500); err != nil {
		t.Fatal(err)
	}
	c, _ = db.GetConversation("c1")
	if c.LastReadAt != 1500 {
		t.Errorf("last_read_at = %d, want 1500", c.LastReadAt)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{ConversationID: "c1", MsgID: "m1", SenderID: "u2", SenderName: "bob", Body: "hello", Status: "sent", Timestamp: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	// A receipt-only update keeps the body and sets read_at once.
	if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: "m1", Status: "read", ReadAt: 2000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: "m1", ReadAt: 9000}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	got := msgs[0]
	if got.Body != "hello" || got.Status != "read" || got.ReadAt != 2000 || got.Timestamp != 1000 {
		t.Errorf("merged message = %+v", got)
	}
}

func TestEchoReplacesTempRow(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: "tmp-1", TempID: "tmp-1", Body: "hi", FromMe: true, Status: "sending", Timestamp: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: "M1", TempID: "tmp-1", Body: "hi", FromMe: true, Status: "sent", Timestamp: 1100}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].MsgID != "M1" || msgs[0].TempID != "tmp-1" {
		t.Errorf("message = %+v", msgs[0])
	}

	results, err := db.SearchMessages("hi", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("search found %d, want 1 (placeholder must leave the index)", len(results))
	}
}

func TestListMessagesPagination(t *testing.T) {
	db := testDB(t)

	for i, id := range []string{"a", "b", "c", "d"} {
		if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: id, Body: id, Timestamp: int64(1000 * (i + 1))}); err != nil {
			t.Fatal(err)
		}
	}

	page, err := db.ListMessages("c1", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].MsgID != "d" || page[1].MsgID != "c" {
		t.Fatalf("first page = %+v", page)
	}
	page, err = db.ListMessages("c1", page[1].Timestamp, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].MsgID != "b" || page[1].MsgID != "a" {
		t.Errorf("second page = %+v", page)
	}
}

func TestSenderNameFallsBackToParticipant(t *testing.T) {
	db := testDB(t)

	if err := db.BulkUpsertParticipants([]Participant{{UserID: "u2", Name: "Bob"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: "m1", SenderID: "u2", Body: "yo", Timestamp: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ConversationID: "c1", MsgID: "m2", SenderID: "u3", Body: "hey", Timestamp: 2000}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].SenderName != "u3" {
		t.Errorf("unknown sender name = %q, want id fallback", msgs[0].SenderName)
	}
	if msgs[1].SenderName != "Bob" {
		t.Errorf("sender name = %q, want Bob", msgs[1].SenderName)
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)

	msgs := []Message{
		{ConversationID: "c1", MsgID: "1", Body: "the quick brown fox", Timestamp: 1000},
		{ConversationID: "c1", MsgID: "2", Body: "a lazy dog", Timestamp: 2000},
		{ConversationID: "c2", MsgID: "3", Body: "quick thinking", Timestamp: 3000},
		{ConversationID: "c2", MsgID: "4", Body: "quick but gone", Deleted: true, Timestamp: 4000},
	}
	if err := db.BulkUpsertMessages(msgs); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("quick", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Message.MsgID != "3" {
		t.Errorf("first result = %s, want newest (3)", results[0].Message.MsgID)
	}
	if results[0].Snippet == "" {
		t.Error("expected a snippet")
	}

	results, err = db.SearchMessages("quick", "c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message.MsgID != "1" {
		t.Errorf("scoped search = %+v", results)
	}

	// Operators are matched literally rather than parsed.
	results, err = db.SearchMessages(`fox OR "dog"`, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("literal search = %d results, want 0", len(results))
	}

	if _, err := db.SearchMessages("   ", "", 10); err == nil {
		t.Error("expected an error for an empty query")
	}
}

func TestParticipants(t *testing.T) {
	db := testDB(t)

	if err := db.BulkUpsertParticipants([]Participant{{UserID: "u2", Name: "Bob"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.BulkUpsertParticipants([]Participant{{UserID: "u2", Name: ""}}); err != nil {
		t.Fatal(err)
	}
	p, err := db.GetParticipant("u2")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Name != "Bob" {
		t.Errorf("participant = %+v, want Bob", p)
	}

	p, err = db.GetParticipant("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Errorf("expected nil, got %+v", p)
	}
}

func TestState(t *testing.T) {
	db := testDB(t)

	v, err := db.GetState(StateLastConversation)
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("unset state = %q", v)
	}
	if err := db.SetState(StateLastConversation, "c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetState(StateLastConversation, "c2"); err != nil {
		t.Fatal(err)
	}
	v, err = db.GetState(StateLastConversation)
	if err != nil {
		t.Fatal(err)
	}
	if v != "c2" {
		t.Errorf("state = %q, want c2", v)
	}
}

package transport

import (
	"testing"
)

type fakeCloser struct {
	flagged bool
	closed  bool
}

func (f *fakeCloser) FlagManualClose() { f.flagged = true }
func (f *fakeCloser) Close() error {
	f.closed = true
	return nil
}

func TestRegistryLastWriterWins(t *testing.T) {
	r := NewRegistry()
	first, second := &fakeCloser{}, &fakeCloser{}
	key := ConversationKey("c1")

	r.Register(key, first)
	r.Register(key, second)
	if n := r.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}

	if r.Unregister(key, first) {
		t.Error("stale owner must not remove the newer socket")
	}
	got, ok := r.Get(key)
	if !ok {
		t.Fatal("key missing after stale unregister")
	}
	if got != Closer(second) {
		t.Error("registry does not hold the newest socket")
	}

	if !r.Unregister(key, second) {
		t.Error("current owner could not unregister")
	}
	if n := r.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeCloser{}, &fakeCloser{}
	r.Register(ConversationKey("a"), a)
	r.Register(ConversationKey("b"), b)

	if n := r.CloseAll(); n != 2 {
		t.Errorf("CloseAll() = %d, want 2", n)
	}
	if n := r.Len(); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
	for i, c := range []*fakeCloser{a, b} {
		if !c.flagged || !c.closed {
			t.Errorf("socket %d: flagged=%v closed=%v, want both", i, c.flagged, c.closed)
		}
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		server  string
		want    string
		wantErr bool
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws/chat/c1?token=tok", false},
		{"https://chat.example.com/", "wss://chat.example.com/ws/chat/c1?token=tok", false},
		{"https://chat.example.com/pulse", "wss://chat.example.com/pulse/ws/chat/c1?token=tok", false},
		{"wss://chat.example.com", "wss://chat.example.com/ws/chat/c1?token=tok", false},
		{"ftp://chat.example.com", "", true},
		{"http://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.server, func(t *testing.T) {
			got, err := BuildURL(tt.server, "c1", "tok")
			if tt.wantErr {
				if err == nil {
					t.Errorf("BuildURL(%q) = %q, want error", tt.server, got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("BuildURL(%q) = %q, want %q", tt.server, got, tt.want)
			}
		})
	}
}

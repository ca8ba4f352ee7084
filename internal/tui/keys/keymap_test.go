package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestHintsOrderPageFirst(t *testing.T) {
	k := New()
	k.Global(Binding{Key: tcell.KeyRune, Rune: 'q', Hint: "q:quit", Run: func() {}})
	k.Global(Binding{Key: tcell.KeyRune, Rune: 's', Hint: "s:search", Run: func() {}})
	k.On("list", Binding{Key: tcell.KeyRune, Rune: 'r', Hint: "r:refresh", Run: func() {}})
	k.On("list", Binding{Key: tcell.KeyCtrlL, Run: func() {}})

	tests := []struct {
		page string
		want string
	}{
		{"list", "r:refresh  q:quit  s:search"},
		{"chat", "q:quit  s:search"},
	}
	for _, tt := range tests {
		// Repeat to catch unstable ordering.
		for i := 0; i < 5; i++ {
			if got := k.Hints(tt.page); got != tt.want {
				t.Fatalf("Hints(%q) = %q, want %q", tt.page, got, tt.want)
			}
		}
	}
}

func TestDispatchPrefersPageBinding(t *testing.T) {
	var ran []string
	k := New()
	k.Global(Binding{Key: tcell.KeyRune, Rune: 'r', Run: func() { ran = append(ran, "global") }})
	k.On("list", Binding{Key: tcell.KeyRune, Rune: 'r', Run: func() { ran = append(ran, "list") }})

	if !k.Dispatch("list", runeKey('r'), false) {
		t.Fatal("r on list not handled")
	}
	if !k.Dispatch("chat", runeKey('r'), false) {
		t.Fatal("r on chat not handled")
	}
	if k.Dispatch("chat", runeKey('x'), false) {
		t.Error("unbound key reported as handled")
	}
	if len(ran) != 2 || ran[0] != "list" || ran[1] != "global" {
		t.Errorf("ran = %v, want [list global]", ran)
	}
}

func TestDispatchInInput(t *testing.T) {
	var back, quit int
	k := New()
	k.Global(Binding{Key: tcell.KeyRune, Rune: 'q', Run: func() { quit++ }})
	k.On("chat", Binding{Key: tcell.KeyEscape, Run: func() { back++ }, InInput: true})

	if k.Dispatch("chat", runeKey('q'), true) {
		t.Error("rune binding fired while typing")
	}
	if !k.Dispatch("chat", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), true) {
		t.Error("escape not handled while typing")
	}
	if quit != 0 || back != 1 {
		t.Errorf("quit=%d back=%d, want 0 and 1", quit, back)
	}
}

package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/pulse/internal/notify"
	"github.com/matheus3301/pulse/internal/tui/keys"
	"github.com/matheus3301/pulse/internal/tui/model"
	"github.com/matheus3301/pulse/internal/tui/views"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		line      string
		want      Command
		wantText  string
		isCommand bool
	}{
		{"/delete m1", Command{Name: "delete", Args: "m1"}, "", true},
		{"/  READ ", Command{Name: "read"}, "", true},
		{"/search hello  world", Command{Name: "search", Args: "hello  world"}, "", true},
		{"/", Command{}, "", true},
		{"hello /there", Command{}, "hello /there", false},
		{"//shrug", Command{}, "/shrug", false},
	}
	for _, tt := range tests {
		cmd, text, isCommand := ParseInput(tt.line)
		if cmd != tt.want || text != tt.wantText || isCommand != tt.isCommand {
			t.Errorf("ParseInput(%q) = %+v, %q, %v; want %+v, %q, %v",
				tt.line, cmd, text, isCommand, tt.want, tt.wantText, tt.isCommand)
		}
	}
}

func TestLookupCommand(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr string
	}{
		{"delete", "delete", ""},
		{"del", "delete", ""},
		{"s", "search", ""},
		{"h", "help", ""},
		{"", "", "empty command"},
		{"kick", "", "unknown command /kick"},
	}
	for _, tt := range tests {
		spec, err := lookupCommand(tt.name)
		if tt.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("lookupCommand(%q) error = %v, want %q", tt.name, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("lookupCommand(%q): %v", tt.name, err)
			continue
		}
		if spec.name != tt.want {
			t.Errorf("lookupCommand(%q) = %q, want %q", tt.name, spec.name, tt.want)
		}
	}
}

func TestCommandHelpListsEveryCommand(t *testing.T) {
	help := commandHelp()
	for _, c := range commands {
		if !strings.Contains(help, c.usage) {
			t.Errorf("help %q is missing %q", help, c.usage)
		}
	}
}

func TestPageSwitchShowsHints(t *testing.T) {
	shell := NewShell()
	a := &App{
		shell:     shell,
		pages:     tview.NewPages(),
		keymap:    keys.New(),
		statusBar: views.NewStatusBar(),
		composer:  views.NewComposer(),
	}
	a.setupBindings()

	a.setPage(pageChat)
	got := a.statusBar.GetText(true)
	for _, hint := range []string{"i:compose", "esc:back", "q:quit"} {
		if !strings.Contains(got, hint) {
			t.Errorf("status bar %q is missing %q", got, hint)
		}
	}
	if strings.Contains(got, "r:refresh") {
		t.Errorf("status bar %q shows a list-only binding on the chat page", got)
	}
	if !shell.attention.Visible() {
		t.Error("chat page in front should be visible")
	}
}

func TestAttention(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := &attention{now: func() time.Time { return now }, lastInput: now}

	var w notify.Window = a
	if w.Visible() {
		t.Error("no page selected, want not visible")
	}
	a.setPage(pageChat)
	if !w.Visible() || !w.Focused() {
		t.Error("chat page with recent input should be visible and focused")
	}

	now = now.Add(awayAfter + time.Second)
	if w.Focused() {
		t.Error("idle user should count as away")
	}
	a.touch()
	if !w.Focused() {
		t.Error("input should restore focus")
	}
}

func TestBellFlashesAndClears(t *testing.T) {
	s := &Shell{flash: &model.Flash{}}
	b := &bell{shell: s}

	h, err := b.Show(notify.Notification{Title: "bob", Body: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.flash.Get(); got != "bob: hi" {
		t.Errorf("flash = %q, want %q", got, "bob: hi")
	}
	h.Close()
	if got := s.flash.Get(); got != "" {
		t.Errorf("flash after Close = %q", got)
	}
}

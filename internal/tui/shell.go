package tui

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/fx"

	"github.com/matheus3301/pulse/internal/notify"
	"github.com/matheus3301/pulse/internal/tui/model"
)

// awayAfter is how long without input before the user counts as away.
const awayAfter = 2 * time.Minute

// Module provides the terminal shell, its notification platform and window,
// and the App. It expects app.Module in the same graph.
var Module = fx.Module("tui",
	fx.Provide(
		NewShell,
		func(s *Shell) notify.Platform { return s.bell },
		func(s *Shell) notify.Window { return s.attention },
		NewApp,
	),
)

// Shell owns the tview application and the state the notification gate
// reads: which page is in front and when the user last typed.
type Shell struct {
	app       *tview.Application
	flash     *model.Flash
	attention *attention
	bell      *bell
}

// NewShell creates the terminal application shell.
func NewShell() *Shell {
	s := &Shell{
		app:   tview.NewApplication(),
		flash: &model.Flash{},
	}
	s.attention = &attention{shell: s, lastInput: time.Now(), now: time.Now}
	s.bell = &bell{shell: s}
	s.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		s.bell.setScreen(screen)
		return false
	})
	return s
}

// attention implements notify.Window for a terminal: the conversation is
// visible while its page is in front, focused while the user is not away.
type attention struct {
	shell *Shell
	now   func() time.Time

	mu        sync.Mutex
	page      string
	lastInput time.Time
	onFocus   func()
}

func (a *attention) setPage(page string) {
	a.mu.Lock()
	a.page = page
	a.mu.Unlock()
}

func (a *attention) touch() {
	a.mu.Lock()
	a.lastInput = a.now()
	a.mu.Unlock()
}

func (a *attention) Visible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.page == pageChat
}

func (a *attention) Focused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now().Sub(a.lastInput) < awayAfter
}

func (a *attention) Focus() {
	a.mu.Lock()
	fn := a.onFocus
	a.mu.Unlock()
	if fn != nil {
		a.shell.app.QueueUpdateDraw(fn)
	}
}

// bell implements notify.Platform with the terminal bell and the status
// line flash.
type bell struct {
	shell *Shell

	mu     sync.Mutex
	screen tcell.Screen
}

func (b *bell) setScreen(screen tcell.Screen) {
	b.mu.Lock()
	b.screen = screen
	b.mu.Unlock()
}

func (b *bell) Granted() bool { return true }

func (b *bell) Show(n notify.Notification) (notify.Handle, error) {
	id := b.shell.flash.Set(n.Title+": "+n.Body, time.Hour)
	b.mu.Lock()
	screen := b.screen
	b.mu.Unlock()
	if screen != nil {
		_ = screen.Beep()
	}
	return &flashHandle{flash: b.shell.flash, id: id}, nil
}

type flashHandle struct {
	flash *model.Flash
	id    int
}

func (h *flashHandle) Close() {
	h.flash.Drop(h.id)
}

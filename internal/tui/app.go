package tui

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/pulse/internal/app"
	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/conversation"
	"github.com/matheus3301/pulse/internal/history"
	"github.com/matheus3301/pulse/internal/outbox"
	"github.com/matheus3301/pulse/internal/store"
	"github.com/matheus3301/pulse/internal/tui/keys"
	"github.com/matheus3301/pulse/internal/tui/model"
	"github.com/matheus3301/pulse/internal/tui/views"
)

const (
	pageList   = "list"
	pageChat   = "chat"
	pageSearch = "search"
)

// App is the main TUI application shell.
type App struct {
	shell     *Shell
	pages     *tview.Pages
	vm        *model.ViewModel
	bus       *bus.Bus
	keymap    *keys.Keymap
	statusBar *views.StatusBar
	convList  *views.ConversationList
	msgView   *views.MessageView
	composer  *views.Composer
	searchV   *views.SearchView
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(shell *Shell, p app.Params, lease *app.Lease, db *store.DB, remote *history.Client, factory *conversation.Factory, b *bus.Bus, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	var r model.Remote
	if p.Config.ServerURL != "" {
		r = remote
	}
	vm := model.NewViewModel(db, r, factory, logger.Named("tui"))

	a := &App{
		shell:     shell,
		pages:     tview.NewPages(),
		vm:        vm,
		bus:       b,
		keymap:    keys.New(),
		statusBar: views.NewStatusBar(),
		convList:  views.NewConversationList(),
		msgView:   views.NewMessageView(),
		composer:  views.NewComposer(),
		searchV:   views.NewSearchView(),
		logger:    logger.Named("tui"),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(p.Profile, lease.ReadOnly)
	a.shell.attention.onFocus = a.showChat
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.keymap.Global(keys.Binding{Key: tcell.KeyRune, Rune: 'q', Hint: "q:quit", Run: a.shell.app.Stop})
	a.keymap.Global(keys.Binding{Key: tcell.KeyRune, Rune: 's', Hint: "s:search", Run: a.showSearch})
	a.keymap.On(pageList, keys.Binding{
		Key: tcell.KeyRune, Rune: 'r', Hint: "r:refresh",
		Run: func() { go a.loadConversations(true) },
	})
	a.keymap.On(pageChat, keys.Binding{
		Key: tcell.KeyRune, Rune: 'i', Hint: "i:compose",
		Run: func() { a.shell.app.SetFocus(a.composer) },
	})
	a.keymap.On(pageChat, keys.Binding{Key: tcell.KeyEscape, Hint: "esc:back", Run: a.showList, InInput: true})
	a.keymap.On(pageChat, keys.Binding{Key: tcell.KeyCtrlR, Hint: "^r:mark read", Run: a.markRead, InInput: true})
	a.keymap.On(pageSearch, keys.Binding{Key: tcell.KeyEscape, Hint: "esc:back", Run: a.showList, InInput: true})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.SelectedConversation(); id != "" {
			a.openConversation(id)
		}
	})

	a.composer.SetOnKeystroke(func() {
		if v := a.vm.Active(); v != nil {
			v.Keystroke()
		}
	})
	a.composer.SetFocusFunc(func() {
		if v := a.vm.Active(); v != nil {
			v.Focus()
		}
	})
	a.composer.SetBlurFunc(func() {
		if v := a.vm.Active(); v != nil {
			v.Blur()
		}
	})
	a.composer.SetOnSend(func(line string) {
		v := a.vm.Active()
		if v == nil {
			return
		}
		cmd, text, isCommand := ParseInput(line)
		if isCommand {
			a.runCommand(v, cmd)
			return
		}
		if _, err := v.Send(text); err != nil {
			a.flash(sendError(err), 5*time.Second)
		}
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			results, err := a.vm.Search(query)
			if err != nil {
				a.flash("Search failed: "+err.Error(), 5*time.Second)
				return
			}
			a.shell.app.QueueUpdateDraw(func() {
				a.searchV.Update(results)
				a.shell.app.SetFocus(a.searchV.Results())
			})
		}()
	})
	a.searchV.Results().SetSelectedFunc(func(row, col int) {
		if id := a.searchV.SelectedConversation(); id != "" {
			a.openConversation(id)
		}
	})
}

func sendError(err error) string {
	switch {
	case errors.Is(err, outbox.ErrNotConnected):
		return "Not connected, message not sent"
	case errors.Is(err, outbox.ErrThrottled):
		return "Sending too fast, slow down"
	case errors.Is(err, outbox.ErrEmptyMessage):
		return ""
	}
	return "Send failed: " + err.Error()
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageList, a.convList, true, true)
	a.pages.AddPage(pageChat, chatFlex, true, false)
	a.pages.AddPage(pageSearch, a.searchV, true, false)
	a.setPage(pageList)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.shell.app.SetRoot(root, true)

	a.shell.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		wasAway := !a.shell.attention.Focused()
		a.shell.attention.touch()
		currentPage, _ := a.pages.GetFrontPage()

		if currentPage == pageChat && wasAway {
			if v := a.vm.Active(); v != nil {
				go v.MarkAllRead()
			}
		}

		_, typing := a.shell.app.GetFocus().(*tview.InputField)
		if a.keymap.Dispatch(currentPage, event, typing) {
			return nil
		}
		return event
	})
}

func (a *App) openConversation(id string) {
	go func() {
		v, err := a.vm.Open(a.ctx, id)
		if err != nil {
			a.flash("Open failed: "+err.Error(), 5*time.Second)
			return
		}
		a.shell.app.QueueUpdateDraw(func() {
			a.msgView.SetConversation(a.vm.Title(id))
			a.renderView(v)
			a.showChat()
		})
	}()
}

// setPage brings page to the front and advertises its key bindings.
func (a *App) setPage(page string) {
	a.pages.SwitchToPage(page)
	a.shell.attention.setPage(page)
	a.statusBar.SetHints(a.keymap.Hints(page))
}

func (a *App) showChat() {
	a.setPage(pageChat)
	a.shell.app.SetFocus(a.composer)
	if v := a.vm.Active(); v != nil {
		go v.MarkAllRead()
	}
}

func (a *App) showList() {
	go a.vm.Leave(a.vm.Active())
	a.statusBar.SetStatus("")
	a.setPage(pageList)
	a.shell.app.SetFocus(a.convList)
	go a.loadConversations(false)
}

func (a *App) showSearch() {
	a.setPage(pageSearch)
	a.shell.app.SetFocus(a.searchV.Input())
}

func (a *App) renderView(v *conversation.View) {
	errText := v.Err()
	if serr := v.ServerError(); serr != "" && errText == "" {
		errText = serr
	}
	a.msgView.Update(v.Messages(), a.vm.Self(), v.TypingUsers(), errText)
	a.statusBar.SetStatus(v.Status())
	a.statusBar.SetFlash(a.shell.flash.Get())
}

func (a *App) flash(msg string, d time.Duration) {
	if msg == "" {
		return
	}
	a.shell.flash.Set(msg, d)
	a.shell.app.QueueUpdateDraw(func() {
		a.statusBar.SetFlash(a.shell.flash.Get())
	})
}

func (a *App) loadConversations(remote bool) {
	var err error
	if remote {
		err = a.vm.LoadConversations(a.ctx)
	} else {
		err = a.vm.Reload()
	}
	if err != nil {
		a.flash("Could not list conversations: "+err.Error(), 5*time.Second)
	}
	a.shell.app.QueueUpdateDraw(func() {
		a.convList.Update(a.vm.Conversations())
	})
}

// restoreSelection selects the conversation open when the client last ran.
func (a *App) restoreSelection() {
	a.loadConversations(true)
	last := a.vm.LastConversation()
	if last == "" {
		return
	}
	a.shell.app.QueueUpdateDraw(func() {
		a.convList.SelectConversation(last)
	})
}

// Run starts the TUI application and blocks until it quits.
func (a *App) Run() error {
	go a.restoreSelection()
	go a.watchBus()
	a.startRefreshLoop()

	err := a.shell.app.Run()
	a.Stop()
	return err
}

// watchBus redraws the mounted conversation when it changes.
func (a *App) watchBus() {
	ch, unsub := a.bus.Subscribe("", 256)
	defer unsub()
	for {
		select {
		case evt := <-ch:
			switch evt.Kind {
			case bus.KindViewChanged, bus.KindStatusChanged, bus.KindSendFailed, bus.KindNotificationShown:
				v := a.vm.Active()
				if v == nil {
					continue
				}
				if evt.Kind == bus.KindSendFailed {
					a.shell.flash.Set("Send failed, message not delivered", 5*time.Second)
				}
				a.shell.app.QueueUpdateDraw(func() { a.renderView(v) })
			}
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.vm.Reload()
				a.shell.app.QueueUpdateDraw(func() {
					currentPage, _ := a.pages.GetFrontPage()
					if currentPage == pageList {
						a.convList.Update(a.vm.Conversations())
					}
					a.statusBar.SetFlash(a.shell.flash.Get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop unmounts the open conversation and shuts the TUI down.
func (a *App) Stop() {
	a.vm.Close()
	a.cancel()
	a.shell.app.Stop()
}

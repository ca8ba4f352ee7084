// Package keys maps key events to actions per TUI page.
package keys

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Binding is one key and what it does. A binding with an empty Hint is
// active but not advertised in the status bar.
type Binding struct {
	Key  tcell.Key
	Rune rune
	Hint string
	Run  func()

	// InInput keeps the binding live while a text field has focus. Plain
	// rune bindings must leave it unset or they would swallow typing.
	InInput bool
}

func (b Binding) matches(ev *tcell.EventKey) bool {
	if b.Key == tcell.KeyRune {
		return ev.Key() == tcell.KeyRune && ev.Rune() == b.Rune
	}
	return ev.Key() == b.Key
}

// Keymap holds page bindings ahead of global ones, in registration order.
type Keymap struct {
	global []Binding
	pages  map[string][]Binding
}

// New returns an empty keymap.
func New() *Keymap {
	return &Keymap{pages: make(map[string][]Binding)}
}

// Global binds b on every page.
func (k *Keymap) Global(b Binding) {
	k.global = append(k.global, b)
}

// On binds b on page only. It wins over a global binding for the same key.
func (k *Keymap) On(page string, b Binding) {
	k.pages[page] = append(k.pages[page], b)
}

// Hints renders the advertised bindings for page, page-specific first.
func (k *Keymap) Hints(page string) string {
	var hints []string
	for _, b := range k.active(page) {
		if b.Hint != "" {
			hints = append(hints, b.Hint)
		}
	}
	return strings.Join(hints, "  ")
}

// Dispatch runs the first binding on page matching ev and reports whether
// one did. While inInput is set only InInput bindings are considered.
func (k *Keymap) Dispatch(page string, ev *tcell.EventKey, inInput bool) bool {
	for _, b := range k.active(page) {
		if inInput && !b.InInput {
			continue
		}
		if b.matches(ev) {
			b.Run()
			return true
		}
	}
	return false
}

func (k *Keymap) active(page string) []Binding {
	out := make([]Binding, 0, len(k.pages[page])+len(k.global))
	out = append(out, k.pages[page]...)
	return append(out, k.global...)
}

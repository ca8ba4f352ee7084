package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// historyLimit bounds the lines Up/Down can recall.
const historyLimit = 50

// Composer is the message input line. Lines starting with '/' are commands;
// Up and Down walk back through what was submitted.
type Composer struct {
	*tview.InputField
	onSend      func(text string)
	onKeystroke func()

	history []string
	cursor  int
	draft   string
}

// NewComposer creates an empty composer.
func NewComposer() *Composer {
	c := &Composer{InputField: tview.NewInputField().SetLabel(" > ").SetFieldWidth(0)}

	c.SetChangedFunc(func(text string) {
		if text != "" && c.onKeystroke != nil {
			c.onKeystroke()
		}
	})
	c.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp:
			c.recall(-1)
			return nil
		case tcell.KeyDown:
			c.recall(1)
			return nil
		}
		return ev
	})
	c.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || c.onSend == nil {
			return
		}
		if line := c.GetText(); line != "" {
			c.remember(line)
			c.onSend(line)
			c.SetText("")
		}
	})
	return c
}

// SetOnSend sets the callback for a submitted line.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// SetOnKeystroke sets the callback for every edit of a non-empty line.
func (c *Composer) SetOnKeystroke(fn func()) {
	c.onKeystroke = fn
}

func (c *Composer) remember(line string) {
	if n := len(c.history); n == 0 || c.history[n-1] != line {
		c.history = append(c.history, line)
	}
	if len(c.history) > historyLimit {
		c.history = c.history[len(c.history)-historyLimit:]
	}
	c.cursor = len(c.history)
	c.draft = ""
}

// recall moves delta lines through history. Stepping past the newest entry
// restores the line being typed before recall started.
func (c *Composer) recall(delta int) {
	next := c.cursor + delta
	if next < 0 || next > len(c.history) {
		return
	}
	if c.cursor == len(c.history) {
		c.draft = c.GetText()
	}
	c.cursor = next
	if next == len(c.history) {
		c.SetText(c.draft)
		return
	}
	c.SetText(c.history[next])
}

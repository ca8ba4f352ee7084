package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/pulse/internal/status"
)

// StatusBar displays the profile, the connection status and transient
// messages.
type StatusBar struct {
	*tview.TextView
	profile  string
	status   status.State
	readOnly bool
	flash    string
	hints    string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile display.
func (sb *StatusBar) SetProfile(name string, readOnly bool) {
	sb.profile = name
	sb.readOnly = readOnly
	sb.render()
}

// SetStatus updates the connection status; empty hides it.
func (sb *StatusBar) SetStatus(s status.State) {
	sb.status = s
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

// SetHints sets the key bindings shown after everything else.
func (sb *StatusBar) SetHints(hints string) {
	sb.hints = hints
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	line := fmt.Sprintf(" [::b]%s[-:-:-]", tview.Escape(sb.profile))
	if sb.readOnly {
		line += " [yellow](read-only)[-]"
	}
	if sb.status != "" {
		line += " | " + statusColor(sb.status)
	}
	line += " | " + time.Now().Format("15:04")
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(sb.flash))
	}
	if sb.hints != "" {
		line += " | [::d]" + tview.Escape(sb.hints) + "[-:-:-]"
	}

	_, _ = fmt.Fprint(sb, line)
}

func statusColor(s status.State) string {
	switch s {
	case status.Connected:
		return "[green]" + string(s) + "[-]"
	case status.Connecting:
		return "[yellow]" + string(s) + "[-]"
	case status.Error:
		return "[red]" + string(s) + "[-]"
	}
	return string(s)
}

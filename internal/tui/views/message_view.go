package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/pulse/internal/chat"
)

// MessageView displays the reconciled message list of one conversation.
type MessageView struct {
	*tview.TextView
	title string
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &MessageView{TextView: tv}
}

// SetConversation updates the title with the conversation name.
func (mv *MessageView) SetConversation(name string) {
	mv.title = name
	mv.SetTitle(fmt.Sprintf(" %s ", tview.Escape(name)))
}

// Update renders msgs, oldest first, followed by the typing line and any
// page-level error.
func (mv *MessageView) Update(msgs []chat.Message, self chat.Identity, typing []chat.TypingUser, pageErr string) {
	mv.Clear()

	if pageErr != "" {
		_, _ = fmt.Fprintf(mv, "[red]%s[-]\n\n", tview.Escape(pageErr))
	}

	for _, m := range msgs {
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		if self.IsSelf(m) {
			sender = "You"
		}
		body := tview.Escape(bodyText(m.Content))
		if m.Deleted {
			body = "[::i]" + body + "[-:-:-]"
		}
		meta := formatTimestamp(m.CreatedAt)
		if m.Edited {
			meta += " (edited)"
		}
		if mark := statusMark(m.Status); mark != "" {
			meta += " " + mark
		}
		_, _ = fmt.Fprintf(mv, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n", tview.Escape(cellText(sender)), meta, body)
	}

	if line := typingLine(typing); line != "" {
		_, _ = fmt.Fprintf(mv, "[::d]%s[-:-:-]\n", tview.Escape(cellText(line)))
	}

	mv.ScrollToEnd()
}

func statusMark(s string) string {
	switch s {
	case chat.StatusSending:
		return "…"
	case chat.StatusSent:
		return "✓"
	case chat.StatusDelivered:
		return "✓✓"
	case chat.StatusRead:
		return "[blue]✓✓[-]"
	case chat.StatusFailed:
		return "[red]failed[-]"
	}
	return ""
}

func typingLine(users []chat.TypingUser) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0].Name + " is typing…"
	}
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	return strings.Join(names, ", ") + " are typing…"
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02 15:04")
}

package views

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/matheus3301/pulse/internal/store"
)

// ConversationList is the conversation table with unread badges.
type ConversationList struct {
	*tview.Table
	convs []store.Conversation
}

// NewConversationList creates a new conversation table.
func NewConversationList() *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")

	return &ConversationList{Table: table}
}

// Update refreshes the list with new data, keeping the selection in range.
func (cl *ConversationList) Update(convs []store.Conversation) {
	cl.convs = convs
	cl.render()
}

func (cl *ConversationList) render() {
	row, _ := cl.GetSelection()
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" NAME").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor).SetExpansion(1))
	cl.SetCell(0, 1, tview.NewTableCell(" LAST MESSAGE").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor).SetExpansion(2))
	cl.SetCell(0, 2, tview.NewTableCell(" WHEN").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, c := range cl.convs {
		name := c.Name
		if c.IsGroup {
			name = "# " + name
		}
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", c.UnreadCount, name)
		}
		r := i + 1
		cl.SetCell(r, 0, tview.NewTableCell(" "+tview.Escape(cellText(name))).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(r, 1, tview.NewTableCell(" "+tview.Escape(cellText(c.LastMessagePreview))).SetMaxWidth(50).SetExpansion(2))
		cl.SetCell(r, 2, tview.NewTableCell(" "+relativeTime(c.LastMessageAt)).SetAlign(tview.AlignRight))
	}

	cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	if row < 1 {
		row = 1
	}
	if row > len(cl.convs) {
		row = len(cl.convs)
	}
	if row >= 1 {
		cl.Select(row, 0)
	}
}

// SelectedConversation returns the id of the selected conversation.
func (cl *ConversationList) SelectedConversation() string {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(cl.convs) {
		return cl.convs[idx].ID
	}
	return ""
}

// SelectConversation moves the selection to id if it is listed.
func (cl *ConversationList) SelectConversation(id string) bool {
	for i, c := range cl.convs {
		if c.ID == id {
			cl.Select(i+1, 0)
			return true
		}
	}
	return false
}

// relativeTime renders a unix-millisecond timestamp as "3 minutes ago".
func relativeTime(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return humanize.Time(time.UnixMilli(ms))
}

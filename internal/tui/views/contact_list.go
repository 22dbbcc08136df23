package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/quickchat/qc/internal/chat"
)

// ContactRow is one entry in the contact list with its conversation
// preview.
type ContactRow struct {
	User       chat.Identity
	Preview    string
	LastAt     time.Time
	UnreadHint bool
}

// ContactList is the landing view: everyone you can talk to, with the
// last message exchanged.
type ContactList struct {
	*tview.Table
	rows     []ContactRow
	onSelect func(user chat.Identity)
}

// NewContactList creates the contact table.
func NewContactList() *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Contacts ")

	cl := &ContactList{Table: table}

	table.SetSelectedFunc(func(row, _ int) {
		idx := row - 1
		if idx >= 0 && idx < len(cl.rows) && cl.onSelect != nil {
			cl.onSelect(cl.rows[idx].User)
		}
	})

	return cl
}

// SetOnSelect sets the callback when a contact is chosen.
func (cl *ContactList) SetOnSelect(fn func(user chat.Identity)) {
	cl.onSelect = fn
}

// Update refreshes the table with new rows.
func (cl *ContactList) Update(rows []ContactRow) {
	cl.rows = rows
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, r := range rows {
		row := i + 1
		name := r.User.Name
		if name == "" {
			name = r.User.Email
		}
		if r.UnreadHint {
			name = fmt.Sprintf("* %s", name)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(r.Preview))).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(r.LastAt)).SetMaxWidth(12))
	}
}

// SelectedContact returns the currently highlighted user, if any.
func (cl *ContactList) SelectedContact() (chat.Identity, bool) {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(cl.rows) {
		return cl.rows[idx].User, true
	}
	return chat.Identity{}, false
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

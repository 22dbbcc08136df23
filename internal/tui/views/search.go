package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/quickchat/qc/internal/chat"
)

// SearchView finds users in the directory by email.
type SearchView struct {
	*tview.Flex
	input    *tview.InputField
	results  *tview.Table
	data     []chat.Identity
	onQuery  func(query string)
	onSelect func(user chat.Identity)
}

// NewSearchView creates the user search view.
func NewSearchView() *SearchView {
	input := tview.NewInputField().
		SetLabel(" Email: ").
		SetFieldWidth(0)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true).SetTitle(" Users ")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	sv := &SearchView{
		Flex:    flex,
		input:   input,
		results: results,
	}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil {
			sv.onQuery(input.GetText())
		}
	})

	results.SetSelectedFunc(func(row, _ int) {
		idx := row - 1
		if idx >= 0 && idx < len(sv.data) && sv.onSelect != nil {
			sv.onSelect(sv.data[idx])
		}
	})

	return sv
}

// SetOnQuery sets the callback when a query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// SetOnSelect sets the callback when a result is chosen.
func (sv *SearchView) SetOnSelect(fn func(user chat.Identity)) {
	sv.onSelect = fn
}

// Update refreshes the result table.
func (sv *SearchView) Update(users []chat.Identity) {
	sv.data = users
	sv.results.Clear()

	sv.results.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	sv.results.SetCell(0, 1, tview.NewTableCell(" Email").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, u := range users {
		row := i + 1
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(u.Name))).SetMaxWidth(30).SetExpansion(1))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(u.Email)).SetExpansion(2))
	}
}

// Input returns the query field for focus management.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the result table for focus management.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}

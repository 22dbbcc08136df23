package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the session, connection state, and transient
// notices.
type StatusBar struct {
	*tview.TextView
	session   string
	connected bool
	flash     string
	flashTill time.Time
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetConnected updates the connection indicator.
func (sb *StatusBar) SetConnected(up bool) {
	sb.connected = up
	sb.render()
}

// Flash shows a temporary message.
func (sb *StatusBar) Flash(msg string, d time.Duration) {
	sb.flash = msg
	sb.flashTill = time.Now().Add(d)
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	conn := "[red]offline[-]"
	if sb.connected {
		conn = "[green]online[-]"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.session, conn, clock)
	if sb.flash != "" && time.Now().Before(sb.flashTill) {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(sb.flash))
	}

	_, _ = fmt.Fprint(sb, line)
}

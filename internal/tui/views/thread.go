package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/quickchat/qc/internal/chat"
)

// Thread displays one conversation: the message log plus a composer.
type Thread struct {
	*tview.Flex
	messages *tview.TextView
	composer *tview.InputField
	peerName string
	onSend   func(text string)
}

// NewThread creates the conversation view.
func NewThread() *Thread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetTitle(" Messages ")

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetTitle(" Compose (i to focus) ")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	th := &Thread{
		Flex:     flex,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && th.onSend != nil {
			text := composer.GetText()
			if text != "" {
				th.onSend(text)
				composer.SetText("")
			}
		}
	})

	return th
}

// SetPeerName updates the view title.
func (th *Thread) SetPeerName(name string) {
	th.peerName = name
	th.messages.SetTitle(fmt.Sprintf(" %s ", name))
}

// SetOnSend sets the callback invoked when the composer submits.
func (th *Thread) SetOnSend(fn func(text string)) {
	th.onSend = fn
}

// Update redraws the full message log. Own messages carry a delivery
// tick; the peer's do not.
func (th *Thread) Update(msgs []chat.Message) {
	th.messages.Clear()

	for _, m := range msgs {
		sender := th.peerName
		tick := ""
		if m.Origin == chat.OriginSelf {
			sender = "You"
			tick = " " + stateTick(m.State)
		}

		ts := ""
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.Format("15:04")
		}
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)), ts, tick,
			tview.Escape(sanitizeForTerminal(m.Text)))
		_, _ = fmt.Fprint(th.messages, line)
	}

	th.messages.ScrollToEnd()
}

// stateTick renders the delivery state of an own message.
func stateTick(s chat.DeliveryState) string {
	switch s {
	case chat.StatePending:
		return "[grey]…[-]"
	case chat.StateSent:
		return "[grey]✓[-]"
	case chat.StateDelivered:
		return "[grey]✓✓[-]"
	case chat.StateSeen:
		return "[blue]✓✓[-]"
	default:
		return ""
	}
}

// Messages returns the log text view for focus management.
func (th *Thread) Messages() *tview.TextView {
	return th.messages
}

// Composer returns the input field for focus management.
func (th *Thread) Composer() *tview.InputField {
	return th.composer
}

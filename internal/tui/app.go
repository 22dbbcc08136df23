package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/quickchat/qc/internal/bus"
	"github.com/quickchat/qc/internal/chat"
	"github.com/quickchat/qc/internal/identity"
	"github.com/quickchat/qc/internal/rest"
	intsync "github.com/quickchat/qc/internal/sync"
	"github.com/quickchat/qc/internal/transport"
	"github.com/quickchat/qc/internal/tui/views"
)

// App is the terminal application shell. It owns the screen; every
// other component reports through the bus and App redraws.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	engine    *intsync.Engine
	roster    *identity.Roster
	store     *chat.Store
	rest      *rest.Client
	bus       *bus.Bus
	logger    *zap.Logger
	statusBar *views.StatusBar
	contacts  *views.ContactList
	thread    *views.Thread
	searchV   *views.SearchView
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp wires the TUI over the running engine.
func NewApp(engine *intsync.Engine, roster *identity.Roster, store *chat.Store, restClient *rest.Client, b *bus.Bus, sessionName string, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		engine:    engine,
		roster:    roster,
		store:     store,
		rest:      restClient,
		bus:       b,
		logger:    logger,
		statusBar: views.NewStatusBar(),
		contacts:  views.NewContactList(),
		thread:    views.NewThread(),
		searchV:   views.NewSearchView(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupCallbacks() {
	a.contacts.SetOnSelect(func(user chat.Identity) {
		a.openConversation(user)
	})

	a.thread.SetOnSend(func(text string) {
		a.engine.Send(text)
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			users, err := a.roster.Search(a.ctx, query)
			if err != nil {
				a.app.QueueUpdateDraw(func() {
					a.statusBar.Flash("Search failed: "+err.Error(), 5*time.Second)
				})
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(users)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})

	a.searchV.SetOnSelect(func(user chat.Identity) {
		a.openConversation(user)
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage("contacts", a.contacts, true, true)
	a.pages.AddPage("thread", a.thread, true, false)
	a.pages.AddPage("search", a.searchV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "thread":
				a.engine.Close()
				a.pages.SwitchToPage("contacts")
				a.app.SetFocus(a.contacts)
				go a.refreshContacts()
				return nil
			case "search":
				a.pages.SwitchToPage("contacts")
				a.app.SetFocus(a.contacts)
				return nil
			}
		}

		// Text inputs get all keys.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}

		if currentPage == "thread" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.thread.Composer())
			return nil
		}

		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'q':
				a.app.Stop()
				return nil
			case 's':
				if currentPage == "contacts" {
					a.pages.SwitchToPage("search")
					a.app.SetFocus(a.searchV.Input())
					return nil
				}
			}
		}

		return event
	})
}

func (a *App) openConversation(user chat.Identity) {
	a.engine.Open(a.ctx, a.roster.Conversation(user))

	name := user.Name
	if name == "" {
		name = user.Email
	}
	a.thread.SetPeerName(name)
	a.thread.Update(a.store.Snapshot())
	a.pages.SwitchToPage("thread")
	a.app.SetFocus(a.thread.Composer())
}

// refreshContacts loads the roster and last-message previews.
func (a *App) refreshContacts() {
	users, err := a.roster.Contacts(a.ctx)
	if err != nil {
		a.logger.Warn("contact load failed", zap.Error(err))
		a.app.QueueUpdateDraw(func() {
			a.statusBar.Flash("Contacts unavailable: "+err.Error(), 5*time.Second)
		})
		return
	}

	self := a.roster.Self()
	rows := make([]views.ContactRow, 0, len(users))
	for _, u := range users {
		row := views.ContactRow{User: u}
		if last, ok, err := a.rest.LastMessage(a.ctx, self.ID, u.ID); err == nil && ok {
			row.Preview = last.MessageText
			row.LastAt = last.CreatedAt
			row.UnreadHint = last.SenderID != self.ID && !last.Seen
		}
		rows = append(rows, row)
	}

	a.app.QueueUpdateDraw(func() {
		a.contacts.Update(rows)
	})
}

// eventLoop mirrors engine and transport activity onto the screen.
func (a *App) eventLoop() {
	msgCh, unsubMsg := a.bus.Subscribe("message.", 64)
	defer unsubMsg()
	convCh, unsubConv := a.bus.Subscribe("conversation.", 16)
	defer unsubConv()
	statusCh, unsubStatus := a.bus.Subscribe(bus.KindTransportStatus, 16)
	defer unsubStatus()

	for {
		select {
		case evt := <-msgCh:
			if evt.Kind == bus.KindMessageSendFailed {
				a.app.QueueUpdateDraw(func() {
					a.statusBar.Flash("Send failed, message kept as pending", 5*time.Second)
				})
			}
			a.redrawThread()
		case <-convCh:
			a.redrawThread()
		case evt := <-statusCh:
			up := evt.Payload == transport.StatusConnected
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetConnected(up)
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) redrawThread() {
	snapshot := a.store.Snapshot()
	a.app.QueueUpdateDraw(func() {
		if page, _ := a.pages.GetFrontPage(); page == "thread" {
			a.thread.Update(snapshot)
		}
	})
}

// Run starts the application and blocks until quit.
func (a *App) Run() error {
	go a.eventLoop()
	go a.refreshContacts()
	return a.app.Run()
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
